package schemas

import "strings"

// ContinuationPrefix marks a turn as a re-invocation issued by the dialog
// platform after an escalation. The prefix is part of the wire protocol: the
// escalation response names a followup event "timeout-<action>", and the
// platform echoes that name back as the query text of the next turn.
const ContinuationPrefix = "timeout-"

// CursorContextName identifies the output context that carries the
// navigational cursor between turns.
const CursorContextName = "cursor"

// WebhookRequest is the inbound fulfillment request from the dialog platform.
type WebhookRequest struct {
	ResponseID  string      `json:"responseId,omitempty"`
	Session     string      `json:"session"`
	QueryResult QueryResult `json:"queryResult"`
}

// QueryResult holds the platform's interpretation of one user utterance.
type QueryResult struct {
	QueryText      string            `json:"queryText"`
	Action         string            `json:"action"`
	Parameters     map[string]string `json:"parameters"`
	OutputContexts []Context         `json:"outputContexts"`
	LanguageCode   string            `json:"languageCode,omitempty"`
}

// Context is a platform dialog context: a named bag of parameters with a
// lifespan measured in conversational turns.
type Context struct {
	Name          string         `json:"name"`
	LifespanCount int            `json:"lifespanCount,omitempty"`
	Parameters    map[string]any `json:"parameters"`
}

// WebhookResponse is the outbound fulfillment envelope. Exactly one of the
// two shapes is populated: a success response carries FulfillmentText plus
// the cursor output context; an escalation carries only FollowupEventInput.
type WebhookResponse struct {
	FulfillmentText    string              `json:"fulfillmentText,omitempty"`
	OutputContexts     []Context           `json:"outputContexts,omitempty"`
	FollowupEventInput *FollowupEventInput `json:"followupEventInput,omitempty"`
}

// FollowupEventInput asks the platform to immediately re-invoke the agent
// with the named event, granting the webhook another deadline window.
type FollowupEventInput struct {
	Name         string         `json:"name"`
	Parameters   map[string]any `json:"parameters"`
	LanguageCode string         `json:"languageCode"`
}

// Turn is the transient, parsed form of one inbound request. It is created
// on arrival and discarded once the response is produced.
type Turn struct {
	Session      string
	Action       string
	QueryText    string
	Parameters   map[string]string
	Contexts     []Context
	LanguageCode string
}

// TurnFromRequest flattens the webhook envelope into a Turn.
func TurnFromRequest(req *WebhookRequest) *Turn {
	return &Turn{
		Session:      req.Session,
		Action:       req.QueryResult.Action,
		QueryText:    req.QueryResult.QueryText,
		Parameters:   req.QueryResult.Parameters,
		Contexts:     req.QueryResult.OutputContexts,
		LanguageCode: req.QueryResult.LanguageCode,
	}
}

// IsContinuation reports whether this turn is a continuation probe rather
// than fresh user input.
func (t *Turn) IsContinuation() bool {
	return strings.HasPrefix(t.QueryText, ContinuationPrefix)
}

// CursorContext returns the context carrying the navigational cursor, or nil
// if the turn does not carry one (e.g. the first turn of a conversation).
// The platform prefixes context names with the full session path, so the
// match is by substring.
func (t *Turn) CursorContext() *Context {
	for i := range t.Contexts {
		if strings.Contains(t.Contexts[i].Name, CursorContextName) {
			return &t.Contexts[i]
		}
	}
	return nil
}

// Param returns the named turn parameter, or "" if absent.
func (t *Turn) Param(key string) string {
	if t.Parameters == nil {
		return ""
	}
	return t.Parameters[key]
}

// MenuEntry is one navigable entry of a page's menu: its anchor text and the
// URL it leads to.
type MenuEntry struct {
	Label     string `json:"label"`
	TargetURL string `json:"target_url"`
}

// Page is the result of fetching and extracting one web page.
type Page struct {
	// URL is the final URL after redirects.
	URL string `json:"url"`
	// Title is the contents of the <title> element, if any.
	Title string `json:"title"`
	// Sentences is the page's readable text split into sentences, in
	// document order.
	Sentences []string `json:"sentences"`
	// Links are the page's anchors in document order.
	Links []MenuEntry `json:"links"`
}

// Classification is the analyzer's verdict on a page's text.
type Classification struct {
	Topic    string `json:"topic"`
	Language string `json:"language"`
}

// Link is one crawled anchor, as persisted by the crawler and aggregated
// into domain menus.
type Link struct {
	PageURL  string `json:"page_url"`
	LinkURL  string `json:"link_url"`
	LinkText string `json:"link_text"`
	// X and Y are the anchor's approximate position on the rendered page.
	// Menus rank links that appear high on many pages.
	X int `json:"x"`
	Y int `json:"y"`
}
