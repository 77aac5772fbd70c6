package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zynerotech/streamhook/logger"
	"github.com/zynerotech/streamhook/stream"
)

func testRecord(t *testing.T, id string) stream.Record {
	t.Helper()
	payload := fmt.Sprintf(`{"Records":[{"eventID":%q,"eventName":"INSERT","eventSourceARN":"arn:aws:dynamodb:eu-west-1:1:table/AuditEvents/stream/x","dynamodb":{"NewImage":{"id":{"S":%q}}}}]}`, id, id)
	batch, err := stream.ParseBatch([]byte(payload))
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	return batch.Records[0]
}

type recordingMetrics struct {
	mu        sync.Mutex
	counts    map[Status]int
	durations int
}

func (m *recordingMetrics) IncDispatched(status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[Status]int)
	}
	m.counts[status]++
}

func (m *recordingMetrics) ObserveDispatchDuration(Status, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func newTestDispatcher(url string, timeout time.Duration, opts ...Option) *Dispatcher {
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	return NewDispatcher(Config{URL: url, Timeout: timeout}, opts...)
}

func TestDispatchSuccessSendsEnvelope(t *testing.T) {
	var (
		gotBody    []byte
		gotHeaders http.Header
		gotLength  int64
		gotMethod  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		gotLength = r.ContentLength
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	rec := testRecord(t, "e1")
	outcome := newTestDispatcher(srv.URL+"/api/webhook/dynamodb-stream", time.Second).Dispatch(context.Background(), rec)

	require.True(t, outcome.Succeeded(), outcome.Error)
	assert.Equal(t, http.StatusOK, outcome.StatusCode)
	assert.Equal(t, `{"ok":true}`, outcome.Body)
	assert.NoError(t, outcome.Err())

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, DefaultUserAgent, gotHeaders.Get("User-Agent"))
	assert.Equal(t, int64(len(gotBody)), gotLength)
	assert.Equal(t, strconv.Itoa(len(gotBody)), gotHeaders.Get("Content-Length"))

	var envelope Envelope
	require.NoError(t, sonic.Unmarshal(gotBody, &envelope))
	require.Len(t, envelope.Records, 1)
	assert.JSONEq(t, string(rec.Raw), string(envelope.Records[0]))
}

func TestDispatchNon2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	outcome := newTestDispatcher(srv.URL, time.Second).Dispatch(context.Background(), testRecord(t, "e1"))

	assert.False(t, outcome.Succeeded())
	assert.Equal(t, http.StatusInternalServerError, outcome.StatusCode)
	assert.Equal(t, "boom", outcome.Body)
	assert.Equal(t, "webhook failed with status 500: boom", outcome.Error)

	var statusErr *StatusError
	require.ErrorAs(t, outcome.Err(), &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestDispatchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	outcome := newTestDispatcher(url, time.Second).Dispatch(context.Background(), testRecord(t, "e1"))

	assert.False(t, outcome.Succeeded())
	assert.ErrorIs(t, outcome.Err(), ErrTransport)
	assert.Zero(t, outcome.StatusCode)
	assert.NotEmpty(t, outcome.Error)
}

func TestDispatchTimeoutAbortsRequest(t *testing.T) {
	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		close(aborted)
	}))
	defer srv.Close()

	start := time.Now()
	outcome := newTestDispatcher(srv.URL, 100*time.Millisecond).Dispatch(context.Background(), testRecord(t, "e1"))

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, outcome.Succeeded())
	assert.ErrorIs(t, outcome.Err(), ErrTimeout)
	assert.Contains(t, outcome.Error, "webhook request timeout")

	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request was not aborted")
	}
}

func TestDispatchCustomUserAgent(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.UserAgent())
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewDispatcher(Config{URL: srv.URL, UserAgent: "streamhook-test/2.0"}, WithLogger(logger.Nop()))
	outcome := d.Dispatch(context.Background(), testRecord(t, "e1"))

	assert.True(t, outcome.Succeeded())
	assert.Equal(t, http.StatusAccepted, outcome.StatusCode)
	assert.Equal(t, "streamhook-test/2.0", ua.Load())
}

func TestDispatchRecordWithoutBody(t *testing.T) {
	outcome := newTestDispatcher("http://127.0.0.1:1", time.Second).Dispatch(context.Background(), stream.Record{EventID: "empty"})

	assert.False(t, outcome.Succeeded())
	assert.Contains(t, outcome.Error, "encode envelope")
}

func TestDispatchAllIsIndependentAndOrdered(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var envelope struct {
			Records []struct {
				EventID string `json:"eventID"`
			} `json:"Records"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(body, &envelope)
		hits.Add(1)

		switch envelope.Records[0].EventID {
		case "slow-ok":
			// завершается после неудачного запроса
			<-release
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusBadGateway)
			close(release)
		}
	}))
	defer srv.Close()

	metrics := &recordingMetrics{}
	d := newTestDispatcher(srv.URL, 5*time.Second, WithMetrics(metrics))
	records := []stream.Record{testRecord(t, "slow-ok"), testRecord(t, "fast-fail")}

	outcomes := d.DispatchAll(context.Background(), records)

	require.Len(t, outcomes, 2)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, "slow-ok", outcomes[0].EventID)
	assert.True(t, outcomes[0].Succeeded())
	assert.Equal(t, "fast-fail", outcomes[1].EventID)
	assert.False(t, outcomes[1].Succeeded())

	summary := Summarize(outcomes, logger.Nop())
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)

	assert.Equal(t, 1, metrics.counts[StatusSuccess])
	assert.Equal(t, 1, metrics.counts[StatusFailure])
	assert.Equal(t, 2, metrics.durations)
}

func TestDispatchAllEmpty(t *testing.T) {
	outcomes := newTestDispatcher("http://127.0.0.1:1", time.Second).DispatchAll(context.Background(), nil)
	assert.NotNil(t, outcomes)
	assert.Empty(t, outcomes)
}

func TestDispatchAllConservation(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if n%3 == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	records := make([]stream.Record, 0, 12)
	for i := 0; i < 12; i++ {
		records = append(records, testRecord(t, fmt.Sprintf("e%d", i)))
	}

	outcomes := newTestDispatcher(srv.URL, 5*time.Second).DispatchAll(context.Background(), records)
	summary := Summarize(outcomes, logger.Nop())

	assert.Equal(t, int32(len(records)), hits.Load())
	assert.Len(t, outcomes, len(records))
	assert.Equal(t, len(records), summary.Successful+summary.Failed)
	assert.Equal(t, 4, summary.Failed)
	for i, o := range outcomes {
		assert.Equal(t, records[i].EventID, o.EventID)
	}
}
