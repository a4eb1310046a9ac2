package quake

import (
	"bytes"
	"context"
	"crypto/md5" // #nosec G501
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"github.com/disintegration/imaging"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// Limiter paces outgoing requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// FetchOpt holds the options for fetching and hashing images.
type FetchOpt struct {
	Timeout       time.Duration     // Per-attempt request timeout.
	Retries       int               // Retries after the first attempt for transient failures.
	RetryDelay    time.Duration     // Delay before the first retry.
	MaxRetryDelay time.Duration     // Backoff cap; equal to RetryDelay means a fixed delay.
	UserAgent     string            // User-Agent header sent with each request.
	Transport     http.RoundTripper // Optional transport, e.g. bound to a local address.
	Limiter       Limiter           // Optional pacing applied before every attempt.
}

// Defaults sets default values for the FetchOpt.
func (opt *FetchOpt) Defaults() *FetchOpt {
	ret := opt
	if ret == nil {
		ret = &FetchOpt{}
	}
	if ret.Timeout <= 0 {
		ret.Timeout = DefaultFetchTimeout
	}
	if ret.Retries < 0 {
		ret.Retries = 0
	}
	if ret.RetryDelay < 0 {
		ret.RetryDelay = 0
	}
	if ret.MaxRetryDelay < ret.RetryDelay {
		ret.MaxRetryDelay = ret.RetryDelay
	}
	if ret.UserAgent == "" {
		ret.UserAgent = DefaultUserAgent
	}
	if ret.Transport == nil {
		ret.Transport = &http.Transport{Proxy: http.ProxyFromEnvironment}
	}
	return ret
}

var (
	// DefaultFetchTimeout bounds a single image request.
	DefaultFetchTimeout = 30 * time.Second
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.1"
)

// memoryDst names the download; with NoStore set nothing is written under it.
const memoryDst = "image"

// Fetcher downloads images into memory and hashes their decoded pixels.
type Fetcher struct {
	opt    *FetchOpt
	client *grab.Client
	retry  retrypolicy.RetryPolicy[[]byte]
}

// NewFetcher builds a Fetcher from the given options.
func NewFetcher(opt *FetchOpt) *Fetcher {
	opt = opt.Defaults()
	builder := retrypolicy.NewBuilder[[]byte]().
		HandleIf(func(_ []byte, err error) bool { return isTransient(err) }).
		WithMaxRetries(opt.Retries)
	switch {
	case opt.RetryDelay > 0 && opt.MaxRetryDelay > opt.RetryDelay:
		builder = builder.WithBackoff(opt.RetryDelay, opt.MaxRetryDelay)
	case opt.RetryDelay > 0:
		builder = builder.WithDelay(opt.RetryDelay)
	}
	return &Fetcher{
		opt: opt,
		client: &grab.Client{
			HTTPClient: &http.Client{Transport: opt.Transport},
			UserAgent:  opt.UserAgent,
		},
		retry: builder.Build(),
	}
}

// Hash downloads the image at url and returns its pixel hash. Failures are reported in
// the result rather than as an error.
func (f *Fetcher) Hash(ctx context.Context, url string) HashResult {
	data, err := f.Download(ctx, url)
	if err != nil {
		return HashResult{URL: url, Err: err}
	}
	h, err := HashImage(data)
	if err != nil {
		return HashResult{URL: url, Err: err}
	}
	return HashResult{URL: url, Hash: h}
}

// Download fetches the body of url into memory, retrying transient failures.
func (f *Fetcher) Download(ctx context.Context, url string) ([]byte, error) {
	data, err := failsafe.With(f.retry).WithContext(ctx).Get(func() ([]byte, error) {
		return f.attempt(ctx, url)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return data, nil
}

func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, error) {
	if f.opt.Limiter != nil {
		if err := f.opt.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	ctx, cancel := context.WithTimeout(ctx, f.opt.Timeout)
	defer cancel()

	req, err := grab.NewRequest(memoryDst, url)
	if err != nil {
		return nil, err
	}
	req.NoStore = true
	req.NoResume = true
	req = req.WithContext(ctx)

	resp := f.client.Do(req)
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Bytes()
}

// isTransient reports whether a failed attempt is worth retrying: network errors,
// timeouts of a single attempt, 5xx responses and 429.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var status grab.StatusCodeError
	if errors.As(err, &status) {
		code := int(status)
		return code == http.StatusTooManyRequests || code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// HashImage decodes an encoded image and hashes its pixels. The pixels are normalized
// to 8-bit NRGBA first, so the same picture re-encoded losslessly hashes identically.
func HashImage(data []byte) (Hash, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	h := md5.New() // #nosec G401
	h.Write([]byte(strconv.Itoa(b.Dx()) + "x" + strconv.Itoa(b.Dy()) + ":"))
	h.Write(nrgba.Pix)
	return Hash(hex.EncodeToString(h.Sum(nil))), nil
}
