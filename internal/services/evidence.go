package services

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/cidco-records/apiserver/internal/storage"
	"github.com/cidco-records/apiserver/types"
)

// SignedURLExpiry is how long minted evidence URLs stay valid.
const SignedURLExpiry = 3600 * time.Second

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// EvidenceStorage defines the object-store operations evidence resolution
// needs.
type EvidenceStorage interface {
	List(ctx context.Context, prefix string) ([]string, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// EvidenceService resolves the stored media associated with a record.
type EvidenceService struct {
	storage EvidenceStorage
}

func NewEvidenceService(storage EvidenceStorage) *EvidenceService {
	return &EvidenceService{storage: storage}
}

// Resolve maps a record ID to its image, PDF, and map evidence, minting a
// time-limited signed URL per object. Nothing is assumed present: a record
// with no stored objects resolves to an empty bundle, and storage failures
// degrade to absent slots with a server-side log entry.
func (s *EvidenceService) Resolve(ctx context.Context, id string) types.EvidenceBundle {
	bundle := types.EvidenceBundle{Images: []string{}}

	keys, err := s.storage.List(ctx, "images/"+id+"/")
	if err != nil {
		slog.Warn("failed to list record images", "record_id", id, "error", err)
		keys = nil
	}
	for _, key := range keys {
		if !imageExtensions[strings.ToLower(path.Ext(key))] {
			continue
		}
		signed, err := s.storage.PresignGet(ctx, key, SignedURLExpiry)
		if err != nil {
			slog.Warn("failed to sign image url", "record_id", id, "key", key, "error", err)
			continue
		}
		bundle.Images = append(bundle.Images, signed)
	}

	bundle.PDFURL, bundle.HasPDF = s.signFirst(ctx, id, "pdfs/"+id+".pdf", "pdfs/"+id+".PDF")
	bundle.MapURL, bundle.HasMap = s.signFirst(ctx, id, "maps/"+id+".pdf", "maps/"+id+".PDF")
	return bundle
}

// signFirst mints a signed URL for the first key that exists. Documents are
// bulk-loaded with inconsistent extension casing, hence the two-case
// fallback.
func (s *EvidenceService) signFirst(ctx context.Context, id string, keys ...string) (*string, bool) {
	for _, key := range keys {
		signed, err := s.storage.PresignGet(ctx, key, SignedURLExpiry)
		if err != nil {
			if !errors.Is(err, storage.ErrObjectNotFound) {
				slog.Warn("failed to sign document url", "record_id", id, "key", key, "error", err)
			}
			continue
		}
		return &signed, true
	}
	return nil, false
}
