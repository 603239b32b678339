package camunda

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"outputrocks-nodes/internal/common/errors"
	"outputrocks-nodes/internal/common/logger"
	"outputrocks-nodes/internal/credentials"
	"outputrocks-nodes/internal/host"
	"outputrocks-nodes/internal/nodes/render"
	"outputrocks-nodes/internal/waiting"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNode struct {
	mock.Mock
}

func (m *MockNode) Execute(ctx context.Context, fns host.ExecuteFunctions) ([][]host.Item, error) {
	args := m.Called(ctx, fns)
	if out := args.Get(0); out != nil {
		return out.([][]host.Item), args.Error(1)
	}
	return nil, args.Error(1)
}

func newJob(variables, headers string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                2251799813685249,
		Type:               "outputrocks.outputRocks",
		ProcessInstanceKey: 2251799813685240,
		Variables:          variables,
		CustomHeaders:      headers,
		Retries:            3,
	}}
}

func TestRun_CompletesWithItems(t *testing.T) {
	node := new(MockNode)
	node.On("Execute", mock.Anything, mock.MatchedBy(func(fns host.ExecuteFunctions) bool {
		value, err := fns.NodeParameter("template", 0)
		return err == nil && value == "sample" && fns.ContinueOnFail() && len(fns.InputData()) == 2
	})).Return([][]host.Item{{{JSON: map[string]interface{}{"id": "r-1"}}}}, nil)

	handler := NewNodeJobHandler(NodeJobOptions{NodeName: "outputRocksDocumentRenderer", Node: node}, NodeJobDependencies{
		Logger: logger.NewTestLogger(t),
	})

	job := newJob(`{"items":[{"a":1},{"json":{"b":2}}],"parameters":{"template":"sample"}}`, `{"continueOnFail":"true"}`)
	result, err := handler.Run(context.Background(), job)

	require.NoError(t, err)
	assert.NotContains(t, result, "waiting")
	items := result["items"].([]host.Item)
	require.Len(t, items, 1)
	assert.Equal(t, "r-1", items[0].JSON["id"])
	node.AssertExpectations(t)
}

func TestRun_ParksResumableExecution(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("X-AUTH-TOKEN"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"r-1","status":"queued"}`))
	}))
	defer server.Close()

	cfg := render.DefaultConfig()
	cfg.Endpoint = server.URL
	cfg.WaitWindow = time.Minute
	node := render.NewNode(render.OutputRocks, cfg, render.ServiceDependencies{})

	creds := credentials.NewMemoryStore()
	require.NoError(t, creds.Save(context.Background(), credentials.APITokenType, "default", credentials.Data{"apiToken": "tok"}))
	store := waiting.NewMemoryStore()

	handler := NewNodeJobHandler(NodeJobOptions{
		NodeName: render.OutputRocks.Name,
		Node:     node,
		Defaults: render.OutputRocks.Defaults(),
	}, NodeJobDependencies{
		Credentials: creds,
		Waiting:     store,
		Client:      server.Client(),
		PublicURL:   "https://hooks.example.com/",
		Logger:      logger.NewTestLogger(t),
	})

	job := newJob(`{"items":[{"x":1}],"parameters":{"template":"sample","data":"={{$json}}"}}`, "")
	result, err := handler.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, true, result["waiting"])
	token := result["resumeToken"].(string)
	require.NotEmpty(t, token)

	metadata := received["metadata"].(map[string]interface{})
	assert.Equal(t, "https://hooks.example.com/webhook-waiting/"+token, metadata["webhookWaitingUrl"])
	assert.Equal(t, map[string]interface{}{"x": float64(1)}, received["data"])

	pending, err := store.Get(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, job.Key, pending.JobKey)
	assert.Equal(t, job.ProcessInstanceKey, pending.ProcessInstanceKey)
	assert.Equal(t, render.OutputRocks.Name, pending.NodeName)

	waitTill, err := time.Parse(time.RFC3339, result["waitTill"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), waitTill, 5*time.Second)
}

func TestRun_ParkWithoutStoreFails(t *testing.T) {
	node := new(MockNode)
	node.On("Execute", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		fns := args.Get(1).(host.ExecuteFunctions)
		require.NoError(t, fns.PutExecutionToWait(context.Background(), time.Now().Add(time.Minute)))
	}).Return([][]host.Item{{{JSON: map[string]interface{}{}}}}, nil)

	handler := NewNodeJobHandler(NodeJobOptions{NodeName: "outputRocks", Node: node}, NodeJobDependencies{})
	_, err := handler.Run(context.Background(), newJob(`{}`, ""))

	assert.Equal(t, errors.ErrCodeWaitingStoreFailed, errors.CodeOf(err))
}

func TestRun_Errors(t *testing.T) {
	t.Run("variables are not JSON", func(t *testing.T) {
		handler := NewNodeJobHandler(NodeJobOptions{Node: new(MockNode)}, NodeJobDependencies{})
		_, err := handler.Run(context.Background(), newJob(`{`, ""))
		assert.Equal(t, errors.ErrCodeParse, errors.CodeOf(err))
	})

	t.Run("items are not objects", func(t *testing.T) {
		handler := NewNodeJobHandler(NodeJobOptions{Node: new(MockNode)}, NodeJobDependencies{})
		_, err := handler.Run(context.Background(), newJob(`{"items":[1,2]}`, ""))
		assert.Equal(t, errors.ErrCodeParse, errors.CodeOf(err))
	})

	t.Run("node error is passed through", func(t *testing.T) {
		node := new(MockNode)
		node.On("Execute", mock.Anything, mock.Anything).
			Return(nil, errors.WithItemIndex(errors.NewParseError("data", fmt.Errorf("bad")), 1))

		handler := NewNodeJobHandler(NodeJobOptions{Node: node}, NodeJobDependencies{})
		_, err := handler.Run(context.Background(), newJob(`{"items":[{},{}]}`, ""))

		var stdErr *errors.StandardError
		require.True(t, stderrors.As(err, &stdErr))
		assert.Equal(t, []int{1}, stdErr.ItemIndices)
		assert.Equal(t, "OUTPUTROCKS_PARSE_ERROR", errors.ConvertToBPMNError(stdErr).Code)
	})
}

func TestContinueOnFail(t *testing.T) {
	assert.True(t, continueOnFail(newJob("", `{"continueOnFail":"true"}`)))
	assert.False(t, continueOnFail(newJob("", `{"continueOnFail":"no"}`)))
	assert.False(t, continueOnFail(newJob("", "")))
	assert.False(t, continueOnFail(newJob("", "not json")))
}

func TestResumeURL(t *testing.T) {
	assert.Equal(t, "https://n8n.example.com/webhook-waiting/abc", ResumeURL("https://n8n.example.com/", "abc"))
	assert.Equal(t, "http://localhost:8080/webhook-waiting/abc", ResumeURL("http://localhost:8080", "abc"))
}

func TestExecuteWithRetry(t *testing.T) {
	client := &Client{config: &ClientConfig{
		RequestTimeout: time.Second,
		RetryConfig:    &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}}

	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		result, err := client.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
			calls++
			if calls < 3 {
				return nil, fmt.Errorf("rpc error: code = Unavailable desc = connection refused")
			}
			return int64(42), nil
		}, "create instance")

		require.NoError(t, err)
		assert.Equal(t, int64(42), result)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		_, err := client.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
			calls++
			return nil, fmt.Errorf("context deadline exceeded")
		}, "publish message")

		assert.Equal(t, 3, calls)
		assert.Equal(t, errors.ErrCodeEngineUnavailable, errors.CodeOf(err))
		assert.True(t, strings.Contains(err.Error(), "after 2 attempts"))
	})

	t.Run("does not retry rejections", func(t *testing.T) {
		calls := 0
		_, err := client.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
			calls++
			return nil, fmt.Errorf("rpc error: code = NotFound desc = process not found")
		}, "create instance")

		assert.Equal(t, 1, calls)
		assert.Equal(t, errors.ErrCodeEngineRejected, errors.CodeOf(err))
	})
}
