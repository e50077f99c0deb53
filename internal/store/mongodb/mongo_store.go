package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productDoc struct {
	ID       string               `bson:"_id"`
	Name     string               `bson:"name"`
	Price    primitive.Decimal128 `bson:"price"`
	Quantity int                  `bson:"quantity"`
	ImageURL string               `bson:"imageUrl"`
}

type lineDoc struct {
	ID          string               `bson:"id"`
	Name        string               `bson:"name"`
	Price       primitive.Decimal128 `bson:"price"`
	Quantity    int                  `bson:"quantity"`
	MaxQuantity int                  `bson:"maxQuantity"`
	Image       string               `bson:"image"`
}

type orderDoc struct {
	Items         []lineDoc            `bson:"items"`
	Total         primitive.Decimal128 `bson:"total"`
	Status        string               `bson:"status"`
	CustomerEmail string               `bson:"customerEmail"`
	CustomerName  string               `bson:"customerName"`
	CustomerPhone string               `bson:"customerPhone"`
	CreatedAt     *time.Time           `bson:"createdAt,omitempty"`
}

type Store struct {
	db       *mongo.Database
	products *mongo.Collection
	orders   *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		db:       db,
		products: db.Collection(store.ProductsCollection),
		orders:   db.Collection(store.OrdersCollection),
	}
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	cursor, err := s.products.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []domain.Product
	for cursor.Next(ctx) {
		var doc productDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		p, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration error: %w", err)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var doc productDoc
	err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Product{}, store.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	return doc.toDomain()
}

func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	update := bson.M{"$set": bson.M{"quantity": quantity}}

	result, err := s.products.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update product quantity: %w", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrProductNotFound
	}
	return nil
}

// CreateOrder inserts the order with a server-side createdAt via $currentDate.
func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (string, error) {
	doc, err := orderToDoc(order)
	if err != nil {
		return "", err
	}

	id := primitive.NewObjectID()
	update := bson.M{
		"$setOnInsert": doc,
		"$currentDate": bson.M{"createdAt": true},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := s.orders.UpdateOne(ctx, bson.M{"_id": id}, update, opts); err != nil {
		return "", fmt.Errorf("failed to create order: %w", err)
	}
	return id.Hex(), nil
}

func (s *Store) UpsertProduct(ctx context.Context, p domain.Product) error {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return err
	}
	doc := productDoc{ID: p.ID, Name: p.Name, Price: price, Quantity: p.Quantity, ImageURL: p.ImageURL}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, opts); err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (s *Store) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "customerEmail", Value: 1}}},
	}
	if _, err := s.orders.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

func (d productDoc) toDomain() (domain.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", d.ID, err)
	}
	return domain.Product{ID: d.ID, Name: d.Name, Price: price, Quantity: d.Quantity, ImageURL: d.ImageURL}, nil
}

func orderToDoc(o domain.Order) (orderDoc, error) {
	total, err := toDecimal128(o.Total)
	if err != nil {
		return orderDoc{}, err
	}
	items := make([]lineDoc, 0, len(o.Items))
	for _, l := range o.Items {
		price, err := toDecimal128(l.Price)
		if err != nil {
			return orderDoc{}, err
		}
		items = append(items, lineDoc{
			ID: l.ID, Name: l.Name, Price: price, Quantity: l.Quantity, MaxQuantity: l.MaxQuantity, Image: l.Image,
		})
	}
	return orderDoc{
		Items:         items,
		Total:         total,
		Status:        string(o.Status),
		CustomerEmail: o.CustomerEmail,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("invalid decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal128 %s: %w", v, err)
	}
	return d, nil
}
