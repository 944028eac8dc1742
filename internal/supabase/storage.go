package supabase

import (
	"fmt"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

// StorageClient wraps the Supabase storage bucket that holds uploaded voice
// reference clips and generated audio.
type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(sb *Client, bucket string) *StorageClient {
	return &StorageClient{
		client:  sb.Supabase.Storage,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(sb.Config.SupabaseURL, "/"),
	}
}

// ReferencePath is where a user's uploaded reference clip lives in the bucket.
func ReferencePath(userID, referenceID string) string {
	return fmt.Sprintf("references/%s/%s.wav", userID, referenceID)
}

// SignedReferenceURL creates a short-lived download URL for a reference clip,
// used when the client did not pass reference_audio_url explicitly.
func (s *StorageClient) SignedReferenceURL(userID, referenceID string, expiresIn int) (string, error) {
	resp, err := s.client.CreateSignedUrl(s.bucket, ReferencePath(userID, referenceID), expiresIn)
	if err != nil {
		return "", fmt.Errorf("failed to create signed url: %w", err)
	}
	return resp.SignedURL, nil
}

func (s *StorageClient) PublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, storagePath)
}

func (s *StorageClient) DeleteFile(storagePath string) error {
	_, err := s.client.RemoveFile(s.bucket, []string{storagePath})
	return err
}
