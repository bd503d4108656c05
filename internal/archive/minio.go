package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rx3lixir/tempvoice/internal/room"
)

const prefix = "sessions"

var ErrRecordNotFound = errors.New("archived session not found")

// MinIOArchive writes one JSON object per finished room
type MinIOArchive struct {
	client     *minio.Client
	bucketName string
}

func NewMinIOArchive(client *minio.Client, bucketName string) *MinIOArchive {
	return &MinIOArchive{
		client:     client,
		bucketName: bucketName,
	}
}

// objectName keys records by the day the room was deleted
func objectName(roomID uuid.UUID, deletedAt time.Time) string {
	return dayPrefix(deletedAt) + roomID.String() + ".json"
}

func dayPrefix(day time.Time) string {
	day = day.UTC()
	return fmt.Sprintf("%s/%d/%02d/%02d/", prefix, day.Year(), day.Month(), day.Day())
}

// ArchiveSession uploads the record; it implements room.Archiver
func (a *MinIOArchive) ArchiveSession(ctx context.Context, rec room.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}

	_, err = a.client.PutObject(
		ctx,
		a.bucketName,
		objectName(rec.RoomID, rec.DeletedAt),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: "application/json",
			UserMetadata: map[string]string{
				"room-id":  rec.RoomID.String(),
				"guild-id": rec.GuildID,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to upload to minio: %w", err)
	}

	return nil
}

// ListDay returns the records archived on the given UTC day, optionally
// limited to one guild
func (a *MinIOArchive) ListDay(ctx context.Context, day time.Time, guildID string) ([]room.SessionRecord, error) {
	records := []room.SessionRecord{}

	objects := a.client.ListObjects(ctx, a.bucketName, minio.ListObjectsOptions{
		Prefix:    dayPrefix(day),
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list archive: %w", obj.Err)
		}
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}

		rec, err := a.load(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		if guildID != "" && rec.GuildID != guildID {
			continue
		}
		records = append(records, *rec)
	}

	return records, nil
}

func (a *MinIOArchive) load(ctx context.Context, key string) (*room.SessionRecord, error) {
	object, err := a.client.GetObject(ctx, a.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer object.Close()

	rec := &room.SessionRecord{}
	if err := json.NewDecoder(object).Decode(rec); err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to decode session record %s: %w", key, err)
	}

	return rec, nil
}
