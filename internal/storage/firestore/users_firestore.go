// Package firestore provides persistent storage implementations using Google Cloud Firestore.
package firestore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/random-user/pkg/users"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultUsersCollection is used when no collection name is configured.
const DefaultUsersCollection = "random-users"

// userDocument is the private struct for Firestore marshalling. Seq records
// arrival order so List can return users in the order they were appended.
type userDocument struct {
	Seq         int64  `firestore:"seq"`
	DisplayName string `firestore:"displayName"`
	Gender      string `firestore:"gender"`
	Thumbnail   string `firestore:"thumbnail,omitempty"`
	Medium      string `firestore:"medium,omitempty"`
	Large       string `firestore:"large,omitempty"`
	Phone       string `firestore:"phone"`
	Email       string `firestore:"email"`
}

// UserStore is a concrete implementation of the users.Store interface using
// Firestore. The document id is the user id, which is what makes Append
// idempotent per user.
type UserStore struct {
	client     *firestore.Client
	collection *firestore.CollectionRef
}

// NewUserStore creates a new Firestore-backed user list.
func NewUserStore(client *firestore.Client, collection string) *UserStore {
	if collection == "" {
		collection = DefaultUsersCollection
	}
	return &UserStore{
		client:     client,
		collection: client.Collection(collection),
	}
}

// Append stores the users whose ids are not yet in the collection and
// returns how many it added. The whole page is written in one transaction:
// if any user cannot be stored, none are.
func (s *UserStore) Append(ctx context.Context, list []users.User) (int, error) {
	refs, fresh, err := s.uniqueRefs(list)
	if err != nil {
		return 0, err
	}
	if len(refs) == 0 {
		return 0, nil
	}

	var added int
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		added = 0
		seq, err := s.nextSeq(tx)
		if err != nil {
			return err
		}
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return fmt.Errorf("failed to read existing users: %w", err)
		}
		for i, snap := range snaps {
			if snap.Exists() {
				continue
			}
			if err := tx.Create(refs[i], toDocument(fresh[i], seq)); err != nil {
				return fmt.Errorf("failed to store user %s: %w", fresh[i].ID, err)
			}
			seq++
			added++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append users: %w", err)
	}
	return added, nil
}

// Remove deletes the given ids in one transaction and returns how many of
// them existed.
func (s *UserStore) Remove(ctx context.Context, ids []string) (int, error) {
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ref, err := s.doc(id)
		if err != nil {
			return 0, err
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return 0, nil
	}

	var removed int
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		removed = 0
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return fmt.Errorf("failed to read users to delete: %w", err)
		}
		for i, snap := range snaps {
			if !snap.Exists() {
				continue
			}
			if err := tx.Delete(refs[i]); err != nil {
				return fmt.Errorf("failed to delete user %s: %w", refs[i].ID, err)
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to remove users: %w", err)
	}
	return removed, nil
}

// uniqueRefs validates every id up front and keeps the first occurrence of
// each, so nothing is written for a page that holds an unusable id.
func (s *UserStore) uniqueRefs(list []users.User) ([]*firestore.DocumentRef, []users.User, error) {
	refs := make([]*firestore.DocumentRef, 0, len(list))
	fresh := make([]users.User, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, u := range list {
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}
		ref, err := s.doc(u.ID)
		if err != nil {
			return nil, nil, err
		}
		refs = append(refs, ref)
		fresh = append(fresh, u)
	}
	return refs, fresh, nil
}

// Clear deletes every user document with a BulkWriter.
func (s *UserStore) Clear(ctx context.Context) error {
	iter := s.collection.Documents(ctx)
	defer iter.Stop()

	bw := s.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to list users for clear: %w", err)
		}
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to enqueue delete for %s: %w", doc.Ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to clear users: %w", err)
		}
	}
	return nil
}

// List returns all users in the order they were appended.
func (s *UserStore) List(ctx context.Context) ([]users.User, error) {
	iter := s.collection.OrderBy("seq", firestore.Asc).Documents(ctx)
	return processUserIterator(iter)
}

// Get returns one user, or an error wrapping users.ErrNotFound.
func (s *UserStore) Get(ctx context.Context, id string) (users.User, error) {
	ref, err := s.doc(id)
	if err != nil {
		return users.User{}, err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return users.User{}, fmt.Errorf("user %s: %w", id, users.ErrNotFound)
		}
		return users.User{}, err
	}
	var ud userDocument
	if err := doc.DataTo(&ud); err != nil {
		return users.User{}, err
	}
	return fromDocument(id, ud), nil
}

// doc rejects ids that Firestore would read as a path.
func (s *UserStore) doc(id string) (*firestore.DocumentRef, error) {
	if id == "" || strings.Contains(id, "/") {
		return nil, fmt.Errorf("invalid user id %q", id)
	}
	return s.collection.Doc(id), nil
}

// nextSeq reads the highest sequence number inside tx, so concurrent
// appends conflict and are retried instead of reusing a number.
func (s *UserStore) nextSeq(tx *firestore.Transaction) (int64, error) {
	iter := tx.Documents(s.collection.OrderBy("seq", firestore.Desc).Limit(1))
	defer iter.Stop()
	doc, err := iter.Next()
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read last sequence: %w", err)
	}
	var ud userDocument
	if err := doc.DataTo(&ud); err != nil {
		return 0, err
	}
	return ud.Seq + 1, nil
}

// --- Helper Functions ---

func toDocument(u users.User, seq int64) userDocument {
	return userDocument{
		Seq:         seq,
		DisplayName: u.DisplayName,
		Gender:      string(u.Gender),
		Thumbnail:   urlString(u.Images.Thumbnail),
		Medium:      urlString(u.Images.Medium),
		Large:       urlString(u.Images.Large),
		Phone:       u.Phone,
		Email:       u.Email,
	}
}

func fromDocument(id string, ud userDocument) users.User {
	return users.User{
		ID:          id,
		DisplayName: ud.DisplayName,
		Gender:      users.Gender(ud.Gender),
		Images: users.Images{
			Thumbnail: parseURL(ud.Thumbnail),
			Medium:    parseURL(ud.Medium),
			Large:     parseURL(ud.Large),
		},
		Phone: ud.Phone,
		Email: ud.Email,
	}
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

func parseURL(s string) *url.URL {
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil
	}
	return u
}

func processUserIterator(iter *firestore.DocumentIterator) ([]users.User, error) {
	defer iter.Stop()
	results := []users.User{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var ud userDocument
		if err := doc.DataTo(&ud); err != nil {
			return nil, err
		}
		results = append(results, fromDocument(doc.Ref.ID, ud))
	}
	return results, nil
}
