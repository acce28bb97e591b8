package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/aws"
)

// ErrAlreadySent is returned by MarkEmailSent when email_sent_at is already set.
var ErrAlreadySent = errors.New("fulfillment email already recorded as sent")

const keyAttr = "kiwify_transaction_id"

// Store encapsulates operations on the sales table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new sales Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Upsert inserts the sale or overwrites every gateway-provided field of an
// existing one in a single UpdateItem call. email_sent_at is never touched here
// and created_at is only written on insert. Returns the stored item.
func (s *Store) Upsert(ctx context.Context, sale Sale) (*Sale, error) {
	if sale.TransactionID == "" {
		return nil, fmt.Errorf("upsert sale: empty transaction id")
	}
	now := s.nowFunc().UTC().Format(time.RFC3339)

	amount, err := attributevalue.Marshal(sale.Amount)
	if err != nil {
		return nil, fmt.Errorf("marshal amount: %w", err)
	}

	updateExpr := "SET product_id = :pid, product_name = :pn, amount = :amt, currency = :cur, " +
		"buyer_email = :be, buyer_name = :bn, purchase_date = :pd, #s = :st, payment_method = :pm, " +
		"raw_payload = :raw, updated_at = :ua, created_at = if_not_exists(created_at, :ua)"

	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: sale.TransactionID},
		},
		UpdateExpression:         &updateExpr,
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid": &types.AttributeValueMemberS{Value: sale.ProductID},
			":pn":  &types.AttributeValueMemberS{Value: sale.ProductName},
			":amt": amount,
			":cur": &types.AttributeValueMemberS{Value: sale.Currency},
			":be":  &types.AttributeValueMemberS{Value: sale.BuyerEmail},
			":bn":  &types.AttributeValueMemberS{Value: sale.BuyerName},
			":pd":  &types.AttributeValueMemberS{Value: sale.PurchaseDate},
			":st":  &types.AttributeValueMemberS{Value: sale.Status},
			":pm":  &types.AttributeValueMemberS{Value: sale.PaymentMethod},
			":raw": &types.AttributeValueMemberS{Value: sale.RawPayload},
			":ua":  &types.AttributeValueMemberS{Value: now},
		},
		ReturnValues: types.ReturnValueAllNew,
	}

	out, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("upsert sale: %w", err)
	}

	stored := sale
	if len(out.Attributes) > 0 {
		stored = Sale{}
		if err := attributevalue.UnmarshalMap(out.Attributes, &stored); err != nil {
			return nil, fmt.Errorf("unmarshal sale: %w", err)
		}
	}
	return &stored, nil
}

// Get fetches a sale by transaction id with a strongly consistent read.
// Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, transactionID string) (*Sale, error) {
	consistent := true
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: transactionID},
		},
		ConsistentRead: &consistent,
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var sale Sale
	if err := attributevalue.UnmarshalMap(out.Item, &sale); err != nil {
		return nil, fmt.Errorf("unmarshal sale: %w", err)
	}
	return &sale, nil
}

// MarkEmailSent moves the sale from NOT_SENT to SENT by writing email_sent_at.
// The write is conditional, so it happens at most once per transaction id;
// a second call returns ErrAlreadySent.
func (s *Store) MarkEmailSent(ctx context.Context, transactionID string, at time.Time) error {
	ts := at.UTC().Format(time.RFC3339)
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: transactionID},
		},
		UpdateExpression: awsString("SET email_sent_at = :at, updated_at = :at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at": &types.AttributeValueMemberS{Value: ts},
		},
		ConditionExpression: awsString("attribute_exists(" + keyAttr + ") AND attribute_not_exists(email_sent_at)"),
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrAlreadySent
		}
		return fmt.Errorf("update item (mark email sent): %w", err)
	}
	return nil
}

// List returns every sale, newest purchase first.
func (s *Store) List(ctx context.Context) ([]Sale, error) {
	var (
		result   []Sale
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan sales: %w", err)
		}
		var page []Sale
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal sales: %w", err)
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PurchaseDate > result[j].PurchaseDate
	})
	return result, nil
}

func isConditionalCheckFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
