package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/cespare/xxhash/v2"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energysync/pkg/log"
	"github.com/raterudder/energysync/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// firestoreMaxWrites is the most writes Firestore accepts in one transaction.
const firestoreMaxWrites = 500

// FirestoreProvider implements the Database interface using Google Cloud Firestore.
// Points are stored as documents under measurements/{measurement}/points.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) points(measurement string) *firestore.CollectionRef {
	return f.client.Collection("measurements").Doc(measurement).Collection("points")
}

// pointDocID is the RFC3339 time followed by a hash of the tags so documents
// sort by time and the same point always lands on the same document.
func pointDocID(p types.Point) string {
	return p.Time.UTC().Format(time.RFC3339) + "_" + strconv.FormatUint(xxhash.Sum64String(p.TagString()), 16)
}

// LatestTime implements Database.
func (f *FirestoreProvider) LatestTime(ctx context.Context, measurement string) (time.Time, error) {
	iter := f.points(measurement).
		OrderBy("time", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return time.Time{}, nil
	}
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get latest %s doc: %w", measurement, err)
	}

	v, err := doc.DataAt("time")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "point doc missing time", slog.String("docID", doc.Ref.ID), slog.String("measurement", measurement))
		return time.Time{}, fmt.Errorf("point document %s missing 'time' field: %w", doc.Ref.ID, err)
	}
	ts, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("point document %s 'time' field is not a timestamp", doc.Ref.ID)
	}
	return ts, nil
}

// WriteBatch implements Database. Points are written oldest first in
// transactions of at most 500 documents so a failure never leaves a newer
// point stored without the older ones before it.
func (f *FirestoreProvider) WriteBatch(ctx context.Context, points []types.Point) error {
	sorted := make([]types.Point, len(points))
	copy(sorted, points)
	types.SortPoints(sorted)

	for start := 0; start < len(sorted); start += firestoreMaxWrites {
		end := start + firestoreMaxWrites
		if end > len(sorted) {
			end = len(sorted)
		}
		chunk := sorted[start:end]
		err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			for _, p := range chunk {
				fields := make(map[string]interface{}, len(p.Fields))
				for k, v := range p.Fields {
					fields[k] = v
				}
				doc := f.points(p.Measurement).Doc(pointDocID(p))
				if err := tx.Set(doc, map[string]interface{}{
					"time":   p.Time,
					"tags":   p.Tags,
					"fields": fields,
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to write points %d-%d: %w", start, end, err)
		}
	}
	return nil
}
