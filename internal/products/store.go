package products

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/aws"
)

// ErrNotFound is returned when a product id does not exist.
var ErrNotFound = errors.New("product not found")

// Store encapsulates operations on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	newID     func() string
}

// NewStore creates a new products Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// Create assigns an id and timestamps and stores p.
func (s *Store) Create(ctx context.Context, p Product) (*Product, error) {
	now := s.nowFunc().UTC().Format(time.RFC3339)
	p.ID = s.newID()
	p.CreatedAt = now
	p.UpdatedAt = now

	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return nil, fmt.Errorf("marshal product: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put product: %w", err)
	}
	return &p, nil
}

// Get fetches a product by id. Returns ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       productKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// List returns every product, newest first.
func (s *Store) List(ctx context.Context) ([]Product, error) {
	items, err := s.scan(ctx, &dyn.ScanInput{TableName: &s.tableName})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt > items[j].CreatedAt
	})
	return items, nil
}

// Update applies the non-nil fields of u and returns the updated product.
func (s *Store) Update(ctx context.Context, id string, u Update) (*Product, error) {
	sets := []string{"updated_at = :ua"}
	names := map[string]string{}
	values := map[string]types.AttributeValue{
		":ua": &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339)},
	}
	add := func(attr string, v interface{}) error {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", attr, err)
		}
		names["#"+attr] = attr
		sets = append(sets, "#"+attr+" = :"+attr)
		values[":"+attr] = av
		return nil
	}

	fields := []struct {
		attr string
		val  interface{}
		set  bool
	}{
		{"title", u.Title, u.Title != nil},
		{"author", u.Author, u.Author != nil},
		{"price", u.Price, u.Price != nil},
		{"description", u.Description, u.Description != nil},
		{"category", u.Category, u.Category != nil},
		{"cover_url", u.CoverURL, u.CoverURL != nil},
		{"file_url", u.FileURL, u.FileURL != nil},
		{"pages", u.Pages, u.Pages != nil},
		{"language", u.Language, u.Language != nil},
		{"publisher", u.Publisher, u.Publisher != nil},
		{"kiwify_checkout_link", u.KiwifyCheckoutLink, u.KiwifyCheckoutLink != nil},
	}
	for _, f := range fields {
		if !f.set {
			continue
		}
		if err := add(f.attr, f.val); err != nil {
			return nil, err
		}
	}

	if len(names) == 0 {
		names = nil
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       productKey(id),
		UpdateExpression:          awsString("SET " + strings.Join(sets, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       awsString("attribute_exists(id)"),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Attributes, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// Delete removes a product. Returns ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 productKey(id),
		ConditionExpression: awsString("attribute_exists(id)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return ErrNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// MatchCheckoutLink returns the products whose kiwify_checkout_link contains
// providerProductID (case-insensitive), best match first. See rank.
func (s *Store) MatchCheckoutLink(ctx context.Context, providerProductID string) ([]Product, error) {
	needle := strings.ToLower(strings.TrimSpace(providerProductID))
	if needle == "" {
		return nil, nil
	}

	items, err := s.scan(ctx, &dyn.ScanInput{
		TableName:            &s.tableName,
		FilterExpression:     awsString("attribute_exists(kiwify_checkout_link)"),
		ProjectionExpression: awsString("id, #t, file_url, kiwify_checkout_link, created_at"),
		ExpressionAttributeNames: map[string]string{
			"#t": "title",
		},
	})
	if err != nil {
		return nil, err
	}

	var matches []Product
	for _, p := range items {
		if strings.Contains(strings.ToLower(p.KiwifyCheckoutLink), needle) {
			matches = append(matches, p)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return rank(matches[i], matches[j], needle)
	})
	return matches, nil
}

// rank orders candidate matches: products with a deliverable file first, then
// links where the id is a whole token (not a fragment of a longer id), then the
// newest product, then the lowest id.
func rank(a, b Product, needle string) bool {
	if (a.FileURL != "") != (b.FileURL != "") {
		return a.FileURL != ""
	}
	at, bt := containsToken(a.KiwifyCheckoutLink, needle), containsToken(b.KiwifyCheckoutLink, needle)
	if at != bt {
		return at
	}
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID < b.ID
}

// containsToken reports whether needle occurs in link delimited by
// non-alphanumeric characters (or the string boundaries).
func containsToken(link, needle string) bool {
	link = strings.ToLower(link)
	for offset := 0; ; {
		i := strings.Index(link[offset:], needle)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(needle)
		if (start == 0 || !isAlnum(link[start-1])) && (end == len(link) || !isAlnum(link[end])) {
			return true
		}
		offset = start + 1
	}
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (s *Store) scan(ctx context.Context, input *dyn.ScanInput) ([]Product, error) {
	var result []Product
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}
		var page []Product
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal products: %w", err)
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return result, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func productKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }
