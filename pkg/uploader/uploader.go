package uploader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"membitnode/pkg/logger"
	"membitnode/pkg/membit"
)

// DefaultCDNBaseURL is where mirrored images are publicly served.
const DefaultCDNBaseURL = "https://img.membit.ai/v2"

// maxImageBytes caps how much of a profile image is read into memory.
const maxImageBytes = 10 << 20

// SlotIssuer hands out signed upload slots, satisfied by *membit.Client.
type SlotIssuer interface {
	GenerateUploadURL(ctx context.Context, req *membit.UploadSlotRequest) (*membit.UploadSlot, error)
}

// Uploader mirrors remote images onto the CDN under content-addressed names.
// Identical bytes always map to the same CDN URL, so re-mirroring is a cheap
// existence probe instead of a second upload.
type Uploader struct {
	httpClient *http.Client
	issuer     SlotIssuer
	cdnBase    string
	logger     logger.Logger
}

// Option customizes an Uploader.
type Option func(*Uploader)

// WithTransport routes downloads, probes and uploads through the given
// transport. Nodes pass their proxy transport here.
func WithTransport(rt http.RoundTripper) Option {
	return func(u *Uploader) { u.httpClient.Transport = rt }
}

// WithCDNBase overrides the public CDN base URL, used by tests.
func WithCDNBase(base string) Option {
	return func(u *Uploader) { u.cdnBase = strings.TrimRight(base, "/") }
}

// New creates an uploader that requests slots from issuer.
func New(issuer SlotIssuer, log logger.Logger, opts ...Option) *Uploader {
	if log == nil {
		log = logger.GetLogger()
	}
	u := &Uploader{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		issuer:     issuer,
		cdnBase:    DefaultCDNBaseURL,
		logger:     log,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Mirror returns a CDN URL serving the image at originalURL, uploading it
// first if the CDN does not hold it yet. Mirroring is best effort: any
// failure logs a warning and falls back to originalURL, so a submission is
// never blocked on image hosting.
func (u *Uploader) Mirror(ctx context.Context, originalURL string) string {
	if originalURL == "" {
		return ""
	}
	hosted, err := u.mirror(ctx, originalURL)
	if err != nil {
		u.logger.WarnWithFields("image mirror failed, keeping original URL", map[string]interface{}{
			"url":   originalURL,
			"error": err.Error(),
		})
		return originalURL
	}
	return hosted
}

func (u *Uploader) mirror(ctx context.Context, originalURL string) (string, error) {
	data, contentType, err := u.download(ctx, originalURL)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	candidate := fmt.Sprintf("%s/%s.%s", u.cdnBase, DigestID(sum), extensionFor(contentType))

	exists, err := u.probe(ctx, candidate)
	if err != nil {
		return "", err
	}
	if exists {
		return candidate, nil
	}

	slot, err := u.issuer.GenerateUploadURL(ctx, &membit.UploadSlotRequest{
		OriginalURL:       originalURL,
		ChecksumSHA256Hex: hex.EncodeToString(sum[:]),
		ContentType:       contentType,
	})
	if err != nil {
		return "", err
	}

	public := slot.PublicURL
	if public == "" {
		public = candidate
	}
	if slot.UploadURL == "" {
		// already hosted, nothing to transfer
		return public, nil
	}

	if err := u.upload(ctx, slot, data, contentType, sum); err != nil {
		return "", err
	}
	u.logger.DebugWithFields("image mirrored", map[string]interface{}{
		"url": public,
	})
	return public, nil
}

func (u *Uploader) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image URL: %w", err)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("reading image body: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("image body is empty")
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// probe asks the CDN for the first byte of the candidate URL. 200 and 206
// mean the content is already hosted; 404 and 416 mean it is not; anything
// else is treated as a CDN fault.
func (u *Uploader) probe(ctx context.Context, candidate string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return false, fmt.Errorf("invalid candidate URL: %w", err)
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("cdn probe failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return true, nil
	case http.StatusNotFound, http.StatusRequestedRangeNotSatisfiable:
		return false, nil
	default:
		return false, fmt.Errorf("cdn probe returned status %d", resp.StatusCode)
	}
}

func (u *Uploader) upload(ctx context.Context, slot *membit.UploadSlot, data []byte, contentType string, sum [sha256.Size]byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, slot.UploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid upload URL: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	checksum := slot.ChecksumSHA256
	if checksum == "" {
		checksum = base64.StdEncoding.EncodeToString(sum[:])
	}
	req.Header.Set("x-amz-checksum-sha256", checksum)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("image upload failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("image upload returned status %d", resp.StatusCode)
	}
	return nil
}

// DigestID derives the content-addressed object name from a SHA-256 digest.
// The first 16 digest bytes rendered in UUID grouping give a stable,
// collision-resistant name that is cheap to recompute anywhere the bytes are
// available.
func DigestID(sum [sha256.Size]byte) string {
	id, err := uuid.FromBytes(sum[:16])
	if err != nil {
		// unreachable: FromBytes only rejects slices that are not 16 bytes
		return hex.EncodeToString(sum[:16])
	}
	return id.String()
}

// extensionFor maps a Content-Type header onto a file extension, defaulting
// to jpg for anything unrecognized.
func extensionFor(contentType string) string {
	mediaType := contentType
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))

	switch mediaType {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/jpeg", "image/jpg", "":
		return "jpg"
	default:
		if ext, ok := strings.CutPrefix(mediaType, "image/"); ok && ext != "" {
			return ext
		}
		return "jpg"
	}
}
