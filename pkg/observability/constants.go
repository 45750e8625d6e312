package observability

const (
	AttrAgentType   = "agent.type"
	AttrPlanID      = "plan.id"
	AttrSubtaskID   = "subtask.id"
	AttrToolName    = "tool.name"
	AttrLLMModel    = "llm.model"
	AttrErrorType   = "error.type"
	AttrHTTPMethod  = "http.method"
	AttrHTTPPath    = "http.path"
	AttrHTTPStatus  = "http.status_code"
	AttrApprovalID  = "approval.id"

	SpanLLMTurn          = "agentrt.llm_turn"
	SpanSubtaskExecution = "agentrt.subtask_execution"
	SpanToolExecution    = "agentrt.tool_execution"
	SpanPlanExecution    = "agentrt.plan_execution"

	DefaultServiceName  = "agentrt"
	DefaultMetricsPath  = "/metrics"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultSamplingRate = 1.0
)
