package camunda

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"outputrocks-nodes/internal/common/errors"
	"outputrocks-nodes/internal/common/logger"
	"outputrocks-nodes/internal/common/metrics"
	"outputrocks-nodes/internal/credentials"
	"outputrocks-nodes/internal/host"
	"outputrocks-nodes/internal/waiting"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ResumePath is the route prefix of resume URLs.
const ResumePath = "/webhook-waiting/"

var errNoWaitingStore = stderrors.New("no waiting store configured")

// ResumeURL builds the URL a parked execution is resumed through.
func ResumeURL(publicURL, token string) string {
	return strings.TrimRight(publicURL, "/") + ResumePath + token
}

// jobVariables is the variable contract of a node job.
type jobVariables struct {
	Items      json.RawMessage        `json:"items"`
	Parameters map[string]interface{} `json:"parameters"`
}

// NodeJobDependencies are shared by every node job handler.
type NodeJobDependencies struct {
	Credentials credentials.Store
	Waiting     waiting.Store
	Client      host.Doer
	PublicURL   string
	Logger      logger.Logger
}

// NodeJobHandler runs one action node for every activated job.
type NodeJobHandler struct {
	nodeName     string
	node         host.ExecuteNode
	defaults     map[string]interface{}
	credentialID map[string]string
	timeout      time.Duration
	deps         NodeJobDependencies
	errHandler   *errors.ErrorHandler
	logger       logger.Logger
}

type NodeJobOptions struct {
	NodeName string
	Node     host.ExecuteNode
	// Defaults are the node's declared property defaults.
	Defaults map[string]interface{}
	// CredentialIDs selects the stored credential per credential type.
	CredentialIDs map[string]string
	Timeout       time.Duration
}

func NewNodeJobHandler(opts NodeJobOptions, deps NodeJobDependencies) *NodeJobHandler {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &NodeJobHandler{
		nodeName:     opts.NodeName,
		node:         opts.Node,
		defaults:     opts.Defaults,
		credentialID: opts.CredentialIDs,
		timeout:      opts.Timeout,
		deps:         deps,
		errHandler:   errors.NewErrorHandler(log),
		logger:       log.WithFields(map[string]interface{}{"node": opts.NodeName}),
	}
}

func (h *NodeJobHandler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	result, err := h.Run(ctx, job)
	if err != nil {
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, result)
}

// Run executes the node for a job and returns the completion variables:
// {items} or, for a parked execution, {items, waiting, resumeToken, waitTill}.
func (h *NodeJobHandler) Run(ctx context.Context, job entities.Job) (map[string]interface{}, error) {
	var vars jobVariables
	if job.Variables != "" {
		if err := json.Unmarshal([]byte(job.Variables), &vars); err != nil {
			return nil, errors.NewParseError("variables", err)
		}
	}

	items, err := host.DecodeItems(vars.Items)
	if err != nil {
		return nil, errors.NewParseError("items", err)
	}

	token := waiting.NewToken()
	resumeURL := ""
	if h.deps.PublicURL != "" {
		resumeURL = ResumeURL(h.deps.PublicURL, token)
	}

	execution := host.NewExecution(host.ExecutionOptions{
		Items:          items,
		Parameters:     vars.Parameters,
		Defaults:       h.defaults,
		ContinueOnFail: continueOnFail(job),
		ResumeURL:      resumeURL,
		Credentials:    h.deps.Credentials,
		CredentialIDs:  h.credentialID,
		Client:         h.deps.Client,
	})

	output, err := h.node.Execute(ctx, execution)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{"items": firstOutput(output)}

	waitTill, parked := execution.Waiting()
	if !parked {
		return result, nil
	}

	if h.deps.Waiting == nil {
		return nil, errors.NewWaitingStoreError(errNoWaitingStore)
	}
	err = h.deps.Waiting.Park(ctx, waiting.PendingExecution{
		Token:              token,
		NodeName:           h.nodeName,
		JobKey:             job.Key,
		ProcessInstanceKey: job.ProcessInstanceKey,
		WaitTill:           waitTill,
	})
	if err != nil {
		return nil, errors.NewWaitingStoreError(err)
	}
	metrics.ExecutionsParked.WithLabelValues(h.nodeName).Inc()

	result["waiting"] = true
	result["resumeToken"] = token
	result["waitTill"] = waitTill.UTC().Format(time.RFC3339)
	return result, nil
}

func (h *NodeJobHandler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, result map[string]interface{}) {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(result)
	if err != nil {
		h.errHandler.HandleJobError(ctx, client, job, errors.NewInternalError(err))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":  job.Key,
		"waiting": result["waiting"] == true,
	})
}

func continueOnFail(job entities.Job) bool {
	if job.ActivatedJob == nil || job.CustomHeaders == "" {
		return false
	}
	headers, err := job.GetCustomHeadersAsMap()
	if err != nil {
		return false
	}
	value, _ := strconv.ParseBool(headers["continueOnFail"])
	return value
}

func firstOutput(output [][]host.Item) []host.Item {
	if len(output) == 0 {
		return []host.Item{}
	}
	return output[0]
}
