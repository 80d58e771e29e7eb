// Package mongorepo is the MongoDB Order Store, selected with DB_DRIVER=mongo.
//
// Amounts are stored as decimal strings so totals survive the round trip
// exactly. Status changes use UpdateOne filtered on the current status,
// which MongoDB applies atomically per document.
package mongorepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/app/payment"
)

// Connect dials uri and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).
		SetConnectTimeout(5*time.Second).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongorepo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongorepo: ping: %w", err)
	}
	return client, nil
}

type lineItemDoc struct {
	ProductID string `bson:"productId"`
	Name      string `bson:"name,omitempty"`
	Price     string `bson:"price"`
	Quantity  int    `bson:"qty"`
}

type orderDoc struct {
	ID              string        `bson:"_id"`
	UserID          string        `bson:"userId"`
	Email           string        `bson:"email"`
	FullName        string        `bson:"fullName"`
	PhoneNumber     string        `bson:"phoneNumber"`
	Address         string        `bson:"address"`
	PaymentMethod   string        `bson:"paymentMethod"`
	PaymentStatus   string        `bson:"paymentStatus"`
	OrderData       []lineItemDoc `bson:"orderData"`
	Total           string        `bson:"total"`
	Currency        string        `bson:"currency"`
	Provider        string        `bson:"provider,omitempty"`
	PaymentIntentID *string       `bson:"paymentIntentId,omitempty"`
	IdempotencyKey  string        `bson:"idempotencyKey"`
	ClientTokenEnc  string        `bson:"clientTokenEnc,omitempty"`
	Date            time.Time     `bson:"date"`
	UpdatedAt       time.Time     `bson:"updatedAt"`
}

func toDoc(o *models.Order) orderDoc {
	items := make([]lineItemDoc, 0, len(o.OrderData))
	for _, it := range o.OrderData {
		items = append(items, lineItemDoc{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price.String(),
			Quantity:  it.Quantity,
		})
	}
	return orderDoc{
		ID:              o.ID,
		UserID:          o.UserID,
		Email:           o.Email,
		FullName:        o.FullName,
		PhoneNumber:     o.PhoneNumber,
		Address:         o.Address,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		OrderData:       items,
		Total:           o.Total.String(),
		Currency:        o.Currency,
		Provider:        o.Provider,
		PaymentIntentID: o.PaymentIntentID,
		IdempotencyKey:  o.IdempotencyKey,
		ClientTokenEnc:  o.ClientTokenEnc,
		Date:            o.Date,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (d orderDoc) toModel() (*models.Order, error) {
	items := make(models.OrderData, 0, len(d.OrderData))
	for _, it := range d.OrderData {
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return nil, fmt.Errorf("mongorepo: order %s: price: %w", d.ID, err)
		}
		items = append(items, models.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     price,
			Quantity:  it.Quantity,
		})
	}
	total, err := decimal.NewFromString(d.Total)
	if err != nil {
		return nil, fmt.Errorf("mongorepo: order %s: total: %w", d.ID, err)
	}
	return &models.Order{
		ID:              d.ID,
		UserID:          d.UserID,
		Email:           d.Email,
		FullName:        d.FullName,
		PhoneNumber:     d.PhoneNumber,
		Address:         d.Address,
		PaymentMethod:   models.PaymentMethod(d.PaymentMethod),
		PaymentStatus:   models.PaymentStatus(d.PaymentStatus),
		OrderData:       items,
		Total:           total,
		Currency:        d.Currency,
		Provider:        d.Provider,
		PaymentIntentID: d.PaymentIntentID,
		IdempotencyKey:  d.IdempotencyKey,
		ClientTokenEnc:  d.ClientTokenEnc,
		Date:            d.Date,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

// OrderStore keeps orders in the "orders" collection.
type OrderStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

var _ payment.OrderStore = (*OrderStore)(nil)

func NewOrderStore(client *mongo.Client, database string) *OrderStore {
	return &OrderStore{client: client, col: client.Database(database).Collection("orders")}
}

// EnsureIndexes creates the unique and lookup indexes. Safe to repeat.
func (s *OrderStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "idempotencyKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "paymentIntentId", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"paymentIntentId": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "paymentStatus", Value: 1}, {Key: "date", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongorepo: ensure indexes: %w", err)
	}
	return nil
}

func (s *OrderStore) CreateOrGet(ctx context.Context, o *models.Order) (*models.Order, bool, error) {
	now := time.Now().UTC()
	if o.PaymentStatus == "" {
		o.PaymentStatus = models.StatusPending
	}
	if o.Date.IsZero() {
		o.Date = now
	}
	o.UpdatedAt = now

	_, err := s.col.InsertOne(ctx, toDoc(o))
	if err == nil {
		return o, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("mongorepo: insert: %w", err)
	}

	existing, ferr := s.FindByIdempotencyKey(ctx, o.IdempotencyKey)
	if ferr != nil {
		return nil, false, fmt.Errorf("mongorepo: insert: %w", err)
	}
	return existing, false, nil
}

func (s *OrderStore) FindByID(ctx context.Context, id string) (*models.Order, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *OrderStore) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	return s.findOne(ctx, bson.M{"idempotencyKey": key})
}

func (s *OrderStore) FindByIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	return s.findOne(ctx, bson.M{"paymentIntentId": intentID})
}

func (s *OrderStore) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var doc orderDoc
	err := s.col.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, payment.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongorepo: find: %w", err)
	}
	return doc.toModel()
}

func (s *OrderStore) UpsertByIntentID(ctx context.Context, orderID, intentID, clientTokenEnc string) (*models.Order, error) {
	filter := bson.M{
		"_id": orderID,
		"$or": bson.A{
			bson.M{"paymentIntentId": bson.M{"$exists": false}},
			bson.M{"paymentIntentId": nil},
			bson.M{"paymentIntentId": intentID},
		},
	}
	update := bson.M{"$set": bson.M{
		"paymentIntentId": intentID,
		"clientTokenEnc":  clientTokenEnc,
		"updatedAt":       time.Now().UTC(),
	}}

	res, err := s.col.UpdateOne(ctx, filter, update)
	if mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("%w: intent %s is bound to another order", payment.ErrIntentConflict, intentID)
	}
	if err != nil {
		return nil, fmt.Errorf("mongorepo: bind intent: %w", err)
	}

	o, err := s.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 && o.IntentID() != intentID {
		return o, fmt.Errorf("%w: order %s has intent %s", payment.ErrIntentConflict, orderID, o.IntentID())
	}
	return o, nil
}

func (s *OrderStore) CompareAndSetStatus(ctx context.Context, intentID string, expected, next models.PaymentStatus) error {
	if !expected.CanTransition(next) {
		return fmt.Errorf("%w: %s → %s", payment.ErrInvalidTransition, expected, next)
	}

	res, err := s.col.UpdateOne(ctx,
		bson.M{"paymentIntentId": intentID, "paymentStatus": string(expected)},
		bson.M{"$set": bson.M{"paymentStatus": string(next), "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mongorepo: set status: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := s.col.CountDocuments(ctx, bson.M{"paymentIntentId": intentID})
	if err != nil {
		return fmt.Errorf("mongorepo: set status: %w", err)
	}
	if n == 0 {
		return payment.ErrOrderNotFound
	}
	return payment.ErrStatusConflict
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}}).SetLimit(int64(limit))
	return s.find(ctx, bson.M{"userId": userID}, opts)
}

func (s *OrderStore) ListStalePending(ctx context.Context, q payment.StaleQuery) ([]models.Order, error) {
	if len(q.Providers) == 0 || q.Limit <= 0 {
		return nil, nil
	}

	date := bson.M{"$lt": q.OlderThan.UTC()}
	if !q.NewerThan.IsZero() {
		date["$gt"] = q.NewerThan.UTC()
	}
	filter := bson.M{
		"paymentStatus":   string(models.StatusPending),
		"paymentIntentId": bson.M{"$type": "string"},
		"provider":        bson.M{"$in": q.Providers},
		"date":            date,
	}
	if q.After != nil {
		at := q.After.Date.UTC()
		filter["$or"] = bson.A{
			bson.M{"date": bson.M{"$gt": at}},
			bson.M{"date": at, "_id": bson.M{"$gt": q.After.ID}},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(q.Limit))
	return s.find(ctx, filter, opts)
}

func (s *OrderStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Order, error) {
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongorepo: find: %w", err)
	}
	defer cur.Close(ctx)

	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongorepo: decode: %w", err)
	}

	out := make([]models.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

func (s *OrderStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

type userDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// UserStore keeps users in the "users" collection.
type UserStore struct {
	col *mongo.Collection
}

func NewUserStore(client *mongo.Client, database string) *UserStore {
	return &UserStore{col: client.Database(database).Collection("users")}
}

func (s *UserStore) FindUser(ctx context.Context, id string) (*models.User, error) {
	var doc userDoc
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, payment.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongorepo: find user: %w", err)
	}
	return &models.User{
		ID:        doc.ID,
		Name:      doc.Name,
		Email:     doc.Email,
		Password:  doc.Password,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// Upsert inserts or replaces the user with u.ID.
func (s *UserStore) Upsert(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": u.ID}, userDoc{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Password:  u.Password,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongorepo: upsert user: %w", err)
	}
	return nil
}
