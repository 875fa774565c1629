package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/JakeFAU/venue-harvester/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func TestExponentialRetryPolicy(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 500*time.Millisecond, 4*time.Second)

	assert.Equal(t, 6, p.MaxAttempts())
	assert.True(t, p.ShouldRetry(1))
	assert.True(t, p.ShouldRetry(5))
	assert.False(t, p.ShouldRetry(6))

	assert.Equal(t, 500*time.Millisecond, p.Backoff(1))
	assert.Equal(t, time.Second, p.Backoff(2))
	assert.Equal(t, 2*time.Second, p.Backoff(3))
	assert.Equal(t, 4*time.Second, p.Backoff(4))
	assert.Equal(t, 4*time.Second, p.Backoff(10))
	assert.Equal(t, 500*time.Millisecond, p.Backoff(0))
}

func TestExponentialRetryPolicy_NoRetries(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(-1, time.Millisecond, 0)
	assert.Equal(t, 1, p.MaxAttempts())
	assert.False(t, p.ShouldRetry(1))
	assert.Equal(t, 8*time.Millisecond, p.Backoff(4))
}

func TestClassifyHTTPStatus(t *testing.T) {
	t.Parallel()

	cases := map[int]StatusClass{
		200: StatusOK,
		204: StatusOK,
		404: StatusMissing,
		410: StatusMissing,
		500: StatusRetriable,
		502: StatusRetriable,
		503: StatusRetriable,
		504: StatusRetriable,
		400: StatusRejected,
		403: StatusRejected,
		429: StatusRejected,
		501: StatusRejected,
	}
	for code, want := range cases {
		assert.Equal(t, want, ClassifyHTTPStatus(code), "status %d", code)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetriableError(t *testing.T) {
	t.Parallel()

	_, parseErr := url.Parse("http://[::1")

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: fmt.Errorf("wrap: %w", context.DeadlineExceeded), want: false},
		{name: "parse", err: parseErr, want: false},
		{name: "client timeout", err: &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded}, want: true},
		{name: "net timeout", err: timeoutErr{}, want: true},
		{name: "reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: true},
		{name: "refused", err: syscall.ECONNREFUSED, want: true},
		{name: "eof", err: io.ErrUnexpectedEOF, want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsRetriableError(tc.err), tc.name)
	}
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "not_found", OutcomeNotFound.String())
	assert.Equal(t, "transient_failure", OutcomeTransientFailure.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestNewDataset_CopiesRecords(t *testing.T) {
	t.Parallel()

	v := catalog.Venue{ID: "pami", DisplayName: "TPAMI"}
	recs := []PublicationRecord{{Title: "A", Authors: []string{"X", "Y"}}, {Title: "B"}}
	ds := NewDataset(catalog.Target{Venue: v, Year: 2020}, recs)

	recs[0].Title = "changed"
	recs[0].Authors[0] = "changed"

	assert.Equal(t, "TPAMI2020", ds.ID)
	assert.Equal(t, "pami", ds.VenueID)
	assert.Equal(t, "A", ds.Records[0].Title)
	assert.Equal(t, "X; Y", ds.Records[0].JoinedAuthors("; "))
	assert.Equal(t, "", ds.Records[1].JoinedAuthors("; "))
}
