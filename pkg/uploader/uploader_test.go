package uploader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"membitnode/pkg/logger"
	"membitnode/pkg/membit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIssuer struct {
	mu    sync.Mutex
	slot  *membit.UploadSlot
	err   error
	calls []*membit.UploadSlotRequest
}

func (f *fakeIssuer) GenerateUploadURL(ctx context.Context, req *membit.UploadSlotRequest) (*membit.UploadSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.slot, nil
}

// testHost bundles the three remote parties mirroring talks to: the image
// origin, the CDN, and the signed upload target.
type testHost struct {
	srv         *httptest.Server
	imageBytes  []byte
	contentType string
	imageStatus int
	probeStatus int
	putStatus   int

	mu       sync.Mutex
	probes   []string
	puts     []*http.Request
	putBytes []byte
}

func newTestHost(t *testing.T, image []byte, contentType string) *testHost {
	t.Helper()
	h := &testHost{
		imageBytes:  image,
		contentType: contentType,
		imageStatus: http.StatusOK,
		probeStatus: http.StatusNotFound,
		putStatus:   http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		if h.imageStatus != http.StatusOK {
			w.WriteHeader(h.imageStatus)
			return
		}
		w.Header().Set("Content-Type", h.contentType)
		w.Write(h.imageBytes)
	})
	mux.HandleFunc("/cdn/", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.probes = append(h.probes, r.URL.Path)
		h.mu.Unlock()
		assert.Equal(t, "bytes=0-0", r.Header.Get("Range"))
		w.WriteHeader(h.probeStatus)
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		h.mu.Lock()
		h.puts = append(h.puts, r.Clone(context.Background()))
		h.putBytes = body
		h.mu.Unlock()
		w.WriteHeader(h.putStatus)
	})
	h.srv = httptest.NewServer(mux)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *testHost) imageURL() string  { return h.srv.URL + "/image" }
func (h *testHost) cdnBase() string   { return h.srv.URL + "/cdn" }
func (h *testHost) uploadURL() string { return h.srv.URL + "/upload" }

func TestDigestIDMatchesHexGrouping(t *testing.T) {
	sum := sha256.Sum256([]byte("profile image bytes"))
	hexSum := hex.EncodeToString(sum[:])

	want := fmt.Sprintf("%s-%s-%s-%s-%s",
		hexSum[0:8], hexSum[8:12], hexSum[12:16], hexSum[16:20], hexSum[20:32])
	assert.Equal(t, want, DigestID(sum))

	assert.Equal(t, DigestID(sum), DigestID(sum), "identical bytes map to identical names")

	other := sha256.Sum256([]byte("different bytes"))
	assert.NotEqual(t, DigestID(sum), DigestID(other))
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", "jpg"},
		{"image/jpg", "jpg"},
		{"image/png", "png"},
		{"image/gif", "gif"},
		{"image/webp", "webp"},
		{"image/png; charset=binary", "png"},
		{"IMAGE/PNG", "png"},
		{"image/avif", "avif"},
		{"text/html", "jpg"},
		{"", "jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, extensionFor(tt.contentType))
		})
	}
}

func TestMirrorReturnsCandidateWhenAlreadyHosted(t *testing.T) {
	image := []byte("already hosted bytes")
	host := newTestHost(t, image, "image/png")
	host.probeStatus = http.StatusPartialContent
	issuer := &fakeIssuer{}

	u := New(issuer, logger.NewTestLogger(), WithCDNBase(host.cdnBase()))
	got := u.Mirror(context.Background(), host.imageURL())

	sum := sha256.Sum256(image)
	assert.Equal(t, fmt.Sprintf("%s/%s.png", host.cdnBase(), DigestID(sum)), got)
	assert.Empty(t, issuer.calls, "no slot requested when the CDN already serves the content")
	assert.Empty(t, host.puts)
}

func TestMirrorUploadsWhenMissing(t *testing.T) {
	image := []byte("fresh image bytes")
	host := newTestHost(t, image, "image/jpeg")
	issuer := &fakeIssuer{slot: &membit.UploadSlot{
		UploadURL:      host.uploadURL(),
		PublicURL:      "https://img.example.com/hosted.jpg",
		ChecksumSHA256: "checksum-from-slot",
	}}

	u := New(issuer, logger.NewTestLogger(), WithCDNBase(host.cdnBase()))
	got := u.Mirror(context.Background(), host.imageURL())

	assert.Equal(t, "https://img.example.com/hosted.jpg", got)

	sum := sha256.Sum256(image)
	require.Len(t, issuer.calls, 1)
	assert.Equal(t, host.imageURL(), issuer.calls[0].OriginalURL)
	assert.Equal(t, hex.EncodeToString(sum[:]), issuer.calls[0].ChecksumSHA256Hex)
	assert.Equal(t, "image/jpeg", issuer.calls[0].ContentType)

	require.Len(t, host.puts, 1)
	put := host.puts[0]
	assert.Equal(t, http.MethodPut, put.Method)
	assert.Equal(t, "checksum-from-slot", put.Header.Get("x-amz-checksum-sha256"))
	assert.Equal(t, "image/jpeg", put.Header.Get("Content-Type"))
	assert.Equal(t, image, host.putBytes)
}

func TestMirrorSkipsUploadWhenSlotHasNoTarget(t *testing.T) {
	host := newTestHost(t, []byte("deduplicated upstream"), "image/png")
	issuer := &fakeIssuer{slot: &membit.UploadSlot{
		PublicURL: "https://img.example.com/existing.png",
	}}

	u := New(issuer, logger.NewTestLogger(), WithCDNBase(host.cdnBase()))
	got := u.Mirror(context.Background(), host.imageURL())

	assert.Equal(t, "https://img.example.com/existing.png", got)
	assert.Len(t, issuer.calls, 1)
	assert.Empty(t, host.puts)
}

func TestMirrorFallsBackToOriginalURL(t *testing.T) {
	t.Run("download failure", func(t *testing.T) {
		host := newTestHost(t, []byte("x"), "image/png")
		host.imageStatus = http.StatusForbidden

		u := New(&fakeIssuer{}, logger.NewTestLogger(), WithCDNBase(host.cdnBase()))
		assert.Equal(t, host.imageURL(), u.Mirror(context.Background(), host.imageURL()))
	})

	t.Run("cdn probe fault", func(t *testing.T) {
		host := newTestHost(t, []byte("x"), "image/png")
		host.probeStatus = http.StatusInternalServerError
		issuer := &fakeIssuer{}

		u := New(issuer, logger.NewTestLogger(), WithCDNBase(host.cdnBase()))
		assert.Equal(t, host.imageURL(), u.Mirror(context.Background(), host.imageURL()))
		assert.Empty(t, issuer.calls)
	})

	t.Run("slot issue failure", func(t *testing.T) {
		host := newTestHost(t, []byte("x"), "image/png")
		issuer := &fakeIssuer{err: fmt.Errorf("service unavailable")}

		u := New(issuer, logger.NewTestLogger(), WithCDNBase(host.cdnBase()))
		assert.Equal(t, host.imageURL(), u.Mirror(context.Background(), host.imageURL()))
	})

	t.Run("upload rejection", func(t *testing.T) {
		host := newTestHost(t, []byte("x"), "image/png")
		host.putStatus = http.StatusForbidden
		issuer := &fakeIssuer{slot: &membit.UploadSlot{
			UploadURL: host.uploadURL(),
			PublicURL: "https://img.example.com/never.png",
		}}

		u := New(issuer, logger.NewTestLogger(), WithCDNBase(host.cdnBase()))
		assert.Equal(t, host.imageURL(), u.Mirror(context.Background(), host.imageURL()))
	})
}

func TestMirrorEmptyURL(t *testing.T) {
	u := New(&fakeIssuer{}, logger.NewTestLogger())
	assert.Equal(t, "", u.Mirror(context.Background(), ""))
}
