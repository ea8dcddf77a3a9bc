package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hitoshi/gatehouse/internal/model"
)

// usersCollection はユーザーレコードを格納するコレクション名。
const usersCollection = "users"

// userDoc はusersコレクションのドキュメント表現。
// ドメインモデルとBSONの対応はこの型に閉じ込める。
type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Name      string             `bson:"name"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d *userDoc) toModel() *model.User {
	return &model.User{
		ID:        d.ID.Hex(),
		Email:     d.Email,
		Name:      d.Name,
		CreatedAt: d.CreatedAt,
	}
}

// MongoUserRepo はMongoDBを使用したユーザーリポジトリ。
type MongoUserRepo struct {
	col *mongo.Collection
}

// NewMongoUserRepo はMongoUserRepoを生成する。
func NewMongoUserRepo(db *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{col: db.Collection(usersCollection)}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
// IDがObjectIDの16進表現として不正な場合もnilを返す。
// クライアントが改ざんしたIDでの検索は「該当なし」であってエラーではない。
func (r *MongoUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var doc userDoc
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return doc.toModel(), nil
}

// FindByEmail は指定emailのユーザーを取得する。見つからない場合はnilを返す。
func (r *MongoUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var doc userDoc
	err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return doc.toModel(), nil
}

// Insert はユーザーを新規作成し、ストアが採番したObjectIDの16進表現を返す。
// ユニークインデックス違反はmodel.ErrDuplicateEmailにマップする。
func (r *MongoUserRepo) Insert(ctx context.Context, user *model.User) (string, error) {
	doc := userDoc{
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	}

	res, err := r.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return "", fmt.Errorf("insert user %s: %w", user.Email, model.ErrDuplicateEmail)
	}
	if err != nil {
		return "", fmt.Errorf("failed to insert user: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted ID type %T", res.InsertedID)
	}

	return oid.Hex(), nil
}

// EnsureIndexes はusersコレクションに必要なインデックスを作成する。
// emailのユニークインデックスは同時初回ログインの二重作成レースを
// ストアレベルで防ぐ（敗者はErrDuplicateEmailを受け取り、検索をやり直す）。
func (r *MongoUserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create email index: %w", err)
	}
	return nil
}
