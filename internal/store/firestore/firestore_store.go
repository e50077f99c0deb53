// Package firestore stores products and orders in Cloud Firestore, using the
// same collection and field names as the storefront's web client.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
)

// NewClient creates a traced Firestore client. credentialsFile may be empty
// to use application default credentials.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	opts := []option.ClientOption{
		option.WithGRPCDialOption(grpc.WithStatsHandler(otelgrpc.NewClientHandler())),
	}
	if strings.TrimSpace(credentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient failed (project=%s): %w", projectID, err)
	}
	return client, nil
}

// StoreFS is a Firestore-based implementation of store.DocumentStore.
type StoreFS struct {
	Client *firestore.Client
}

func NewStoreFS(client *firestore.Client) *StoreFS {
	return &StoreFS{Client: client}
}

func (r *StoreFS) products() *firestore.CollectionRef {
	return r.Client.Collection(store.ProductsCollection)
}

func (r *StoreFS) orders() *firestore.CollectionRef {
	return r.Client.Collection(store.OrdersCollection)
}

func (r *StoreFS) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if r.Client == nil {
		return nil, errors.New("firestore client is nil")
	}

	it := r.products().Documents(ctx)
	defer it.Stop()

	var items []domain.Product
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		items = append(items, docToProduct(doc.Ref.ID, doc.Data()))
	}
	return items, nil
}

func (r *StoreFS) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if r.Client == nil {
		return domain.Product{}, errors.New("firestore client is nil")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrProductNotFound
	}

	snap, err := r.products().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.Product{}, store.ErrProductNotFound
		}
		return domain.Product{}, err
	}
	return docToProduct(snap.Ref.ID, snap.Data()), nil
}

// UpdateQuantity only touches the quantity field; Update fails on missing docs.
func (r *StoreFS) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	if r.Client == nil {
		return errors.New("firestore client is nil")
	}

	_, err := r.products().Doc(id).Update(ctx, []firestore.Update{
		{Path: "quantity", Value: quantity},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return store.ErrProductNotFound
		}
		return err
	}
	return nil
}

func (r *StoreFS) CreateOrder(ctx context.Context, order domain.Order) (string, error) {
	if r.Client == nil {
		return "", errors.New("firestore client is nil")
	}

	ref, _, err := r.orders().Add(ctx, orderToDoc(order))
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (r *StoreFS) UpsertProduct(ctx context.Context, p domain.Product) error {
	if r.Client == nil {
		return errors.New("firestore client is nil")
	}
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("product id is required")
	}

	_, err := r.products().Doc(p.ID).Set(ctx, productToDoc(p))
	return err
}

func (r *StoreFS) Close(context.Context) error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

// ============================================================
// mapping helpers
// ============================================================

func docToProduct(id string, data map[string]interface{}) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     asString(data["name"]),
		Price:    asDecimal(data["price"]),
		Quantity: asInt(data["quantity"]),
		ImageURL: asString(data["imageUrl"]),
	}
}

func productToDoc(p domain.Product) map[string]interface{} {
	return map[string]interface{}{
		"name":     p.Name,
		"price":    p.Price.InexactFloat64(),
		"quantity": p.Quantity,
		"imageUrl": p.ImageURL,
	}
}

func orderToDoc(o domain.Order) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(o.Items))
	for _, l := range o.Items {
		items = append(items, map[string]interface{}{
			"id":          l.ID,
			"name":        l.Name,
			"price":       l.Price.InexactFloat64(),
			"quantity":    l.Quantity,
			"maxQuantity": l.MaxQuantity,
			"image":       l.Image,
		})
	}
	return map[string]interface{}{
		"items":         items,
		"total":         o.Total.InexactFloat64(),
		"status":        string(o.Status),
		"customerEmail": o.CustomerEmail,
		"customerName":  o.CustomerName,
		"customerPhone": o.CustomerPhone,
		"createdAt":     firestore.ServerTimestamp,
	}
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// asDecimal accepts numbers and numeric strings; anything else is zero.
func asDecimal(v interface{}) decimal.Decimal {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n)
	case int64:
		return decimal.NewFromInt(n)
	case int:
		return decimal.NewFromInt(int64(n))
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(n)); err == nil {
			return d
		}
	}
	return decimal.Zero
}
