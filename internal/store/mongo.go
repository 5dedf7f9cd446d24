package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rollcall/internal/model"
)

const (
	usersCollection      = "users"
	classesCollection    = "classes"
	studentsCollection   = "students"
	attendanceCollection = "attendance"
)

// Mongo is the document Store. On a replica set or sharded cluster
// ReplaceSheet runs in a multi-document transaction. A standalone server has
// no transactions, so there the sheet lock alone serializes writers.
type Mongo struct {
	client       *mongo.Client
	users        *mongo.Collection
	classes      *mongo.Collection
	students     *mongo.Collection
	attendance   *mongo.Collection
	transactions bool
}

// OpenMongo connects to uri and binds the collections of database dbName.
func OpenMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	txn, err := supportsTransactions(ctx, client)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	m := NewMongo(client, client.Database(dbName))
	m.transactions = txn
	return m, nil
}

// supportsTransactions reports whether the server is a replica set member or
// a mongos router.
func supportsTransactions(ctx context.Context, client *mongo.Client) (bool, error) {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello)
	if err != nil {
		return false, fmt.Errorf("mongo hello: %w", err)
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid", nil
}

func NewMongo(client *mongo.Client, db *mongo.Database) *Mongo {
	return &Mongo{
		client:       client,
		users:        db.Collection(usersCollection),
		classes:      db.Collection(classesCollection),
		students:     db.Collection(studentsCollection),
		attendance:   db.Collection(attendanceCollection),
		transactions: true,
	}
}

// Transactional reports whether ReplaceSheet runs in a transaction.
func (m *Mongo) Transactional() bool {
	return m.transactions
}

// EnsureIndexes creates the unique and lookup indexes the queries rely on.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{m.users, mongo.IndexModel{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{m.classes, mongo.IndexModel{Keys: bson.D{{Key: "teacher_id", Value: 1}}}},
		{m.students, mongo.IndexModel{Keys: bson.D{{Key: "student_id", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{m.students, mongo.IndexModel{Keys: bson.D{{Key: "class_id", Value: 1}}}},
		{m.attendance, mongo.IndexModel{
			Keys:    bson.D{{Key: "class_id", Value: 1}, {Key: "date", Value: 1}, {Key: "student_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{m.attendance, mongo.IndexModel{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "date", Value: -1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

func (m *Mongo) UserByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := findOne(ctx, m.users, bson.M{"_id": id}, &u)
	return u, err
}

func (m *Mongo) UserByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := findOne(ctx, m.users, bson.M{"username": username}, &u)
	return u, err
}

func (m *Mongo) CreateUser(ctx context.Context, u model.User) error {
	if _, err := m.users.InsertOne(ctx, u); err != nil {
		return fmt.Errorf("insert user %s: %w", u.Username, err)
	}
	return nil
}

func (m *Mongo) CreateClass(ctx context.Context, c model.Class) error {
	if c.Students == nil {
		c.Students = []string{}
	}
	if _, err := m.classes.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert class %s: %w", c.Name, err)
	}
	return nil
}

func (m *Mongo) ClassByID(ctx context.Context, id string) (model.Class, error) {
	var c model.Class
	err := findOne(ctx, m.classes, bson.M{"_id": id}, &c)
	return c, err
}

func (m *Mongo) OwnedClass(ctx context.Context, id, teacherID string) (model.Class, error) {
	var c model.Class
	err := findOne(ctx, m.classes, bson.M{"_id": id, "teacher_id": teacherID}, &c)
	return c, err
}

func (m *Mongo) ClassesByTeacher(ctx context.Context, teacherID string) ([]model.Class, error) {
	out := []model.Class{}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if err := findAll(ctx, m.classes, bson.M{"teacher_id": teacherID}, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) CreateStudent(ctx context.Context, s model.Student) error {
	if _, err := m.students.InsertOne(ctx, s); err != nil {
		return fmt.Errorf("insert student %s: %w", s.StudentID, err)
	}
	res, err := m.classes.UpdateByID(ctx, s.ClassID, bson.M{"$addToSet": bson.M{"students": s.ID}})
	if err != nil {
		return fmt.Errorf("add student %s to class: %w", s.StudentID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("class %s: %w", s.ClassID, ErrNotFound)
	}
	return nil
}

func (m *Mongo) StudentByID(ctx context.Context, id string) (model.Student, error) {
	var s model.Student
	err := findOne(ctx, m.students, bson.M{"_id": id}, &s)
	return s, err
}

func (m *Mongo) StudentsByClass(ctx context.Context, classID string) ([]model.Student, error) {
	out := []model.Student{}
	opts := options.Find().SetSort(bson.D{{Key: "student_id", Value: 1}})
	if err := findAll(ctx, m.students, bson.M{"class_id": classID}, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) CountStudents(ctx context.Context, classIDs []string) (int, error) {
	if len(classIDs) == 0 {
		return 0, nil
	}
	n, err := m.students.CountDocuments(ctx, bson.M{"class_id": bson.M{"$in": classIDs}})
	return int(n), err
}

func (m *Mongo) ReplaceSheet(ctx context.Context, classID, date string, records []model.AttendanceRecord) error {
	if !m.transactions {
		return replaceSheet(ctx, m.attendance, classID, date, records)
	}
	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(); err != nil {
			return fmt.Errorf("start transaction: %w", err)
		}
		if err := replaceSheet(sc, m.attendance, classID, date, records); err != nil {
			_ = sess.AbortTransaction(context.Background())
			return err
		}
		return sess.CommitTransaction(sc)
	})
}

func replaceSheet(ctx context.Context, coll *mongo.Collection, classID, date string, records []model.AttendanceRecord) error {
	if _, err := coll.DeleteMany(ctx, sheetFilter(classID, date)); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, len(records))
	for i, r := range records {
		docs[i] = r
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert sheet: %w", err)
	}
	return nil
}

func (m *Mongo) ClassAttendance(ctx context.Context, classID, date string) ([]model.AttendanceRecord, error) {
	out := []model.AttendanceRecord{}
	if err := findAll(ctx, m.attendance, sheetFilter(classID, date), sheetSort(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) StudentAttendance(ctx context.Context, studentID string) ([]model.AttendanceRecord, error) {
	out := []model.AttendanceRecord{}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if err := findAll(ctx, m.attendance, bson.M{"student_id": studentID}, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) AttendanceOnDate(ctx context.Context, classIDs []string, date string) ([]model.AttendanceRecord, error) {
	out := []model.AttendanceRecord{}
	if len(classIDs) == 0 {
		return out, nil
	}
	filter := bson.M{"class_id": bson.M{"$in": classIDs}, "date": date}
	if err := findAll(ctx, m.attendance, filter, sheetSort(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// sheetFilter matches a class's records, narrowed to one date when given.
func sheetFilter(classID, date string) bson.M {
	filter := bson.M{"class_id": classID}
	if date != "" {
		filter["date"] = date
	}
	return filter
}

func sheetSort() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "student_name", Value: 1}})
}

func findOne(ctx context.Context, coll *mongo.Collection, filter bson.M, out any) error {
	err := coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func findAll(ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions, out any) error {
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
