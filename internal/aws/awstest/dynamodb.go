// Package awstest provides in-memory fakes of the AWS clients for unit tests.
// NOTE: the DynamoDB fake understands only the expression shapes the stores emit.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDB is a small in-memory stand-in for the DynamoDB client.
// Tables are created lazily; each table is keyed by a single string partition key.
type DynamoDB struct {
	mu     sync.Mutex
	keys   map[string]string
	tables map[string]map[string]map[string]types.AttributeValue

	// Errs forces an operation ("PutItem", "GetItem", "UpdateItem", "DeleteItem", "Scan") to fail.
	Errs map[string]error
	// PageSize > 0 makes Scan return paginated results.
	PageSize int
	// Calls counts invocations per operation.
	Calls map[string]int
}

// NewDynamoDB returns a fake where keys maps table name -> partition key attribute.
func NewDynamoDB(keys map[string]string) *DynamoDB {
	return &DynamoDB{
		keys:   keys,
		tables: map[string]map[string]map[string]types.AttributeValue{},
		Errs:   map[string]error{},
		Calls:  map[string]int{},
	}
}

// Item returns a copy of the stored item, or nil.
func (d *DynamoDB) Item(table, key string) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	item, ok := d.table(table)[key]
	if !ok {
		return nil
	}
	return copyItem(item)
}

// Len returns the number of items stored in table.
func (d *DynamoDB) Len(table string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.table(table))
}

// Seed stores item as-is.
func (d *DynamoDB) Seed(table string, item map[string]types.AttributeValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pk, err := d.pkValue(table, item)
	if err != nil {
		panic(err)
	}
	d.table(table)[pk] = copyItem(item)
}

func (d *DynamoDB) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("PutItem"); err != nil {
		return nil, err
	}
	table := *params.TableName
	pk, err := d.pkValue(table, params.Item)
	if err != nil {
		return nil, err
	}
	existing := d.table(table)[pk]
	if params.ConditionExpression != nil {
		ok, err := evalCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
		}
	}
	d.table(table)[pk] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (d *DynamoDB) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("GetItem"); err != nil {
		return nil, err
	}
	table := *params.TableName
	pk, err := d.pkValue(table, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := d.table(table)[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (d *DynamoDB) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("UpdateItem"); err != nil {
		return nil, err
	}
	table := *params.TableName
	pk, err := d.pkValue(table, params.Key)
	if err != nil {
		return nil, err
	}
	existing, exists := d.table(table)[pk]
	if params.ConditionExpression != nil {
		ok, err := evalCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
		}
	}

	item := map[string]types.AttributeValue{}
	if exists {
		item = copyItem(existing)
	}
	for k, v := range params.Key {
		item[k] = v
	}
	if params.UpdateExpression != nil {
		if err := applyUpdate(*params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item); err != nil {
			return nil, err
		}
	}
	d.table(table)[pk] = item

	out := &dyn.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = copyItem(item)
	}
	return out, nil
}

func (d *DynamoDB) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("DeleteItem"); err != nil {
		return nil, err
	}
	table := *params.TableName
	pk, err := d.pkValue(table, params.Key)
	if err != nil {
		return nil, err
	}
	existing := d.table(table)[pk]
	if params.ConditionExpression != nil {
		ok, err := evalCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
		}
	}
	delete(d.table(table), pk)
	return &dyn.DeleteItemOutput{}, nil
}

func (d *DynamoDB) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Scan"); err != nil {
		return nil, err
	}
	table := *params.TableName
	keyAttr := d.keys[table]
	rows := d.table(table)

	pks := make([]string, 0, len(rows))
	for pk := range rows {
		pks = append(pks, pk)
	}
	sort.Strings(pks)

	start := 0
	if params.ExclusiveStartKey != nil {
		last, err := d.pkValue(table, params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		start = sort.SearchStrings(pks, last)
		if start < len(pks) && pks[start] == last {
			start++
		}
	}

	end := len(pks)
	if d.PageSize > 0 && start+d.PageSize < end {
		end = start + d.PageSize
	}

	out := &dyn.ScanOutput{}
	for _, pk := range pks[start:end] {
		item := rows[pk]
		if params.FilterExpression != nil {
			ok, err := evalCondition(*params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out.Items = append(out.Items, copyItem(item))
	}
	if end < len(pks) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: pks[end-1]},
		}
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (d *DynamoDB) enter(op string) error {
	d.Calls[op]++
	if err := d.Errs[op]; err != nil {
		return err
	}
	return nil
}

func (d *DynamoDB) table(name string) map[string]map[string]types.AttributeValue {
	t, ok := d.tables[name]
	if !ok {
		t = map[string]map[string]types.AttributeValue{}
		d.tables[name] = t
	}
	return t
}

func (d *DynamoDB) pkValue(table string, item map[string]types.AttributeValue) (string, error) {
	keyAttr, ok := d.keys[table]
	if !ok {
		return "", fmt.Errorf("awstest: unknown table %q", table)
	}
	v, ok := item[keyAttr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("awstest: missing string key %q", keyAttr)
	}
	return v.Value, nil
}

// evalCondition supports terms joined by AND:
// attribute_exists(p), attribute_not_exists(p) and p = :v.
func evalCondition(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	for _, term := range strings.Split(expr, " AND ") {
		term = strings.TrimSpace(term)
		switch {
		case strings.HasPrefix(term, "attribute_exists(") && strings.HasSuffix(term, ")"):
			attr := resolveName(term[len("attribute_exists("):len(term)-1], names)
			if _, ok := item[attr]; !ok {
				return false, nil
			}
		case strings.HasPrefix(term, "attribute_not_exists(") && strings.HasSuffix(term, ")"):
			attr := resolveName(term[len("attribute_not_exists("):len(term)-1], names)
			if _, ok := item[attr]; ok {
				return false, nil
			}
		case strings.Contains(term, " = "):
			parts := strings.SplitN(term, " = ", 2)
			attr := resolveName(strings.TrimSpace(parts[0]), names)
			want, ok := values[strings.TrimSpace(parts[1])]
			if !ok {
				return false, fmt.Errorf("awstest: missing value for %q", parts[1])
			}
			if !equalAttr(item[attr], want) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("awstest: unsupported condition %q", term)
		}
	}
	return true, nil
}

// applyUpdate supports "SET a = :v, b = if_not_exists(b, :w)".
func applyUpdate(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "SET ") {
		return fmt.Errorf("awstest: unsupported update %q", expr)
	}
	for _, assign := range splitTopLevel(expr[len("SET "):]) {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("awstest: bad assignment %q", assign)
		}
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		rhs := strings.TrimSpace(parts[1])

		if strings.HasPrefix(rhs, "if_not_exists(") && strings.HasSuffix(rhs, ")") {
			args := strings.SplitN(rhs[len("if_not_exists("):len(rhs)-1], ",", 2)
			if len(args) != 2 {
				return fmt.Errorf("awstest: bad if_not_exists %q", rhs)
			}
			if _, ok := item[resolveName(strings.TrimSpace(args[0]), names)]; ok {
				continue
			}
			rhs = strings.TrimSpace(args[1])
		}

		v, ok := values[rhs]
		if !ok {
			return fmt.Errorf("awstest: missing value for %q", rhs)
		}
		item[attr] = v
	}
	return nil
}

func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func resolveName(p string, names map[string]string) string {
	if strings.HasPrefix(p, "#") {
		if n, ok := names[p]; ok {
			return n
		}
	}
	return p
}

func equalAttr(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	}
	return false
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }

// ErrInjected is a convenience error for Errs.
var ErrInjected = errors.New("awstest: injected failure")
