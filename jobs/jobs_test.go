package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signhub/signhub/internal/fonts"
	jobmetrics "github.com/signhub/signhub/internal/jobs"
)

type recordingMailer struct {
	sent []SendEmailPayload
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, payload SendEmailPayload) error {
	m.sent = append(m.sent, payload)
	return m.err
}

func emailTask(t *testing.T, payload SendEmailPayload) *asynq.Task {
	t.Helper()
	task, err := NewSendEmailTask(payload)
	require.NoError(t, err)
	return task
}

func TestMailJobSendsAndTracks(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	mailer := &recordingMailer{}
	job := NewMailJob(mailer, nil, metrics)

	payload := SendEmailPayload{To: "alice@example.com", Subject: "Your access code", Body: "123456"}
	require.NoError(t, job.Handle(context.Background(), emailTask(t, payload)))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, payload, mailer.sent[0])
	assert.Equal(t, 1.0, jobRuns(t, reg, TaskTypeSendEmail, "success"))
}

func jobRuns(t *testing.T, reg *prometheus.Registry, job, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "signhub_jobs_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["job"] == job && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("no signhub_jobs_total sample for %s/%s", job, status)
	return 0
}

func TestMailJobRejectsBadPayload(t *testing.T) {
	mailer := &recordingMailer{}
	job := NewMailJob(mailer, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), emailTask(t, SendEmailPayload{Subject: "x"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, mailer.sent)
}

func TestMailJobReturnsDeliveryErrors(t *testing.T) {
	boom := errors.New("relay down")
	job := NewMailJob(&recordingMailer{err: boom}, nil, nil)
	err := job.Handle(context.Background(), emailTask(t, SendEmailPayload{To: "a@example.com"}))
	assert.ErrorIs(t, err, boom)
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	mailer := NewSMTPMailer("mail.local", 2525, "cms@example.com")
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	mailer.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := mailer.Send(context.Background(), SendEmailPayload{To: "bob@example.com", Subject: "Hi\nthere", Body: "Body"})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "cms@example.com", gotFrom)
	assert.Equal(t, []string{"bob@example.com"}, gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Hi there\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nBody\r\n"))

	mailer.From = ""
	assert.Error(t, mailer.Send(context.Background(), SendEmailPayload{To: "bob@example.com"}))
}

func TestFontsJobInvalidatesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := fonts.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0)
	ctx := context.Background()
	before, err := cache.Version(ctx)
	require.NoError(t, err)

	job := NewFontsJob(cache, nil, nil)
	require.NoError(t, job.Handle(ctx, NewFontsInvalidateTask()))

	after, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestNewSendEmailTaskPayload(t *testing.T) {
	task := emailTask(t, SendEmailPayload{To: "x@example.com", Subject: "s", Body: "b"})
	assert.Equal(t, TaskTypeSendEmail, task.Type())
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, "x@example.com", decoded["to"])
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[
		{"queue":"default","pending":0,"active":0,"retry":0,"failed":0},
		{"queue":"mail","pending":0,"active":0,"retry":0,"failed":0}
	]`, rr.Body.String())
}

type stubInspector struct {
	queues []string
	infos  map[string]*asynq.QueueInfo
	err    error
}

func (s stubInspector) Queues() ([]string, error) { return s.queues, s.err }

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.infos[queue], nil
}

func TestHealthReportsKnownQueues(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{
		queues: []string{QueueMail},
		infos:  map[string]*asynq.QueueInfo{QueueMail: {Queue: QueueMail, Pending: 2, Active: 1, Retry: 3, Archived: 4}},
	}, nil).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[
		{"queue":"default","pending":0,"active":0,"retry":0,"failed":0},
		{"queue":"mail","pending":2,"active":1,"retry":3,"failed":4}
	]`, rr.Body.String())
}

func TestHealthUnavailableWhenRedisDown(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{err: assert.AnError}, nil).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
