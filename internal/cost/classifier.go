// Package cost buckets outgoing messages into provider billing categories
// and tracks whether a recipient sits inside the free interaction window of
// conversation-billed platforms.
package cost

import (
	"strings"

	"github.com/hireloop/notify-engine/internal/domain"
)

// Context carries the dispatch metadata the classifier keys off.
type Context struct {
	FlowType string
	Channel  domain.ChannelName
	HasMedia bool
}

// serviceFlows are workflow types whose messages are always service
// category, regardless of content.
var serviceFlows = map[string]bool{
	"onboarding":       true,
	"profile_creation": true,
	"assessment":       true,
	"feedback":         true,
	"support":          true,
}

// keywordGroup pairs a category with its trigger substrings. Groups are
// evaluated in order; the first group with a match wins.
type keywordGroup struct {
	category domain.CostCategory
	keywords []string
}

var keywordGroups = []keywordGroup{
	{domain.CategoryService, []string{
		"interview", "application", "account", "password", "verify",
		"verification", "schedule", "reminder", "confirm", "appointment",
	}},
	{domain.CategoryUtility, []string{
		"invoice", "payment", "receipt", "payroll", "payslip",
		"contract", "proposal", "order", "statement",
	}},
	{domain.CategoryMarketing, []string{
		"offer", "discount", "promotion", "newsletter", "subscribe",
		"new feature", "limited time", "upgrade",
	}},
}

// Classifier is a pure, deterministic rule evaluator: identical
// (content, context) pairs always produce the identical classification.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// Classify derives the billing classification for one send. The FreeWindow
// flag is left false here; the window tracker fills it in for
// conversation-billed channels.
func (c *Classifier) Classify(content string, cctx Context) domain.CostClassification {
	cls := domain.CostClassification{
		PricingModel: domain.PricingPerMessage,
		MessageType:  domain.MessageTypeText,
		Category:     c.category(content, cctx),
	}
	if cctx.Channel.ConversationBilled() {
		cls.PricingModel = domain.PricingPerConversation
	}
	if cctx.HasMedia {
		cls.MessageType = domain.MessageTypeMedia
	}
	return cls
}

func (c *Classifier) category(content string, cctx Context) domain.CostCategory {
	// Rule 1: known workflow types are service traffic by definition.
	if serviceFlows[strings.ToLower(cctx.FlowType)] {
		return domain.CategoryService
	}

	// Rule 2: ordered keyword groups, first match wins.
	lower := strings.ToLower(content)
	for _, group := range keywordGroups {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.category
			}
		}
	}

	// Rule 3: default to service, the cheapest assumption.
	return domain.CategoryService
}
