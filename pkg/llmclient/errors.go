package llmclient

import "errors"

// errProviderFault wraps any non-2xx, unparseable, or empty-choices
// response from the LLM proxy, distinguishing it from a transport-level
// (network) error.
var errProviderFault = errors.New("llm provider fault")
