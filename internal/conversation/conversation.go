// Package conversation manages per-(project,user) Oracle conversation
// sessions: resume/create, exchange logging with summarisation and
// insight/symbol extraction, and compression once the token budget fills.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaultlabs/vlt/internal/llmclient"
	"github.com/vaultlabs/vlt/internal/tokenest"
	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

const (
	defaultTokenBudget      = 16000
	compressionThreshold    = 0.80
	recentWindow            = 5
	sessionExpiry           = 24 * time.Hour
	outputSummaryCharLimit  = 500
	maxInsights             = 5
	maxMentionedSymbols     = 100
	maxMentionedFiles       = 50
	compressionModel        = "gpt-4o-mini"
	compressionTemperature  = 0.2
	compressionMaxTokens    = 1000
	compressionCallTimeout  = 30 * time.Second
)

var insightPhrases = []string{
	"is defined in",
	"implements",
	"calls",
	"returns",
	"responsible for",
	"depends on",
	"inherits from",
	"is used by",
}

var symbolPattern = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]*|[a-z]+(?:[A-Z][a-z0-9]*)+|[a-z0-9]+(?:_[a-z0-9]+)+)\b`)
var filePathPattern = regexp.MustCompile(`(\w+[./_-])+\w+\.\w+`)
var citationPattern = regexp.MustCompile(`\[([^\]]+)\]`)

var symbolStopWords = map[string]bool{
	"The": true, "This": true, "That": true, "It": true, "If": true, "When": true,
}

// Store is the persistence surface the manager needs.
type Store interface {
	FindActiveConversation(ctx context.Context, project, user string) (vaultmodel.OracleConversation, bool, error)
	CreateConversation(ctx context.Context, c vaultmodel.OracleConversation) error
	UpdateConversation(ctx context.Context, c vaultmodel.OracleConversation) error
}

// Manager resumes or creates sessions and logs/compresses exchanges.
type Manager struct {
	Store Store
	LLM   *llmclient.Client
}

// GetOrCreateSession resumes the active session for (project, user) when
// its last activity is within 24 hours, else starts a new one.
func (m *Manager) GetOrCreateSession(ctx context.Context, project, user string) (vaultmodel.OracleConversation, error) {
	existing, found, err := m.Store.FindActiveConversation(ctx, project, user)
	if err != nil {
		return vaultmodel.OracleConversation{}, err
	}
	if found && time.Since(existing.LastActivity) <= sessionExpiry {
		return existing, nil
	}

	now := time.Now()
	conv := vaultmodel.OracleConversation{
		ID:           uuid.NewString(),
		ProjectID:    project,
		User:         user,
		TokenBudget:  defaultTokenBudget,
		Status:       vaultmodel.ConversationActive,
		LastActivity: now,
		ExpiresAt:    now.Add(sessionExpiry),
	}
	if err := m.Store.CreateConversation(ctx, conv); err != nil {
		return vaultmodel.OracleConversation{}, err
	}
	return conv, nil
}

// LogExchange summarises the tool output, extracts insights/symbols/files,
// appends the exchange, and triggers compression once the token budget
// crosses its 80% threshold (unless autoCompress is false).
func (m *Manager) LogExchange(ctx context.Context, conv *vaultmodel.OracleConversation, toolName string, input, output any, autoCompress bool) error {
	outputSummary := summarizeOutput(output)
	inputJSON := marshalOrString(input)

	insights := extractInsights(outputSummary)
	symbols := extractSymbols(outputSummary)
	files := extractFiles(outputSummary)

	tokens := tokenest.Estimate(toolName + inputJSON + outputSummary + strings.Join(insights, " "))

	conv.Exchanges = append(conv.Exchanges, vaultmodel.Exchange{
		ToolName:  toolName,
		Input:     inputJSON,
		Output:    outputSummary,
		Insights:  insights,
		Timestamp: time.Now(),
		Tokens:    tokens,
	})
	conv.MentionedSymbols = mergeCapped(conv.MentionedSymbols, symbols, maxMentionedSymbols)
	conv.MentionedFiles = mergeCapped(conv.MentionedFiles, files, maxMentionedFiles)
	conv.TokensUsed += tokens
	conv.LastActivity = time.Now()

	if autoCompress && float64(conv.TokensUsed) > compressionThreshold*float64(conv.TokenBudget) {
		m.CompressConversation(ctx, conv)
	}

	return m.Store.UpdateConversation(ctx, *conv)
}

func summarizeOutput(output any) string {
	switch v := output.(type) {
	case string:
		return truncate(v, outputSummaryCharLimit)
	case map[string]any:
		if answer, ok := v["answer"]; ok {
			if s, ok := answer.(string); ok {
				return truncate(s, outputSummaryCharLimit)
			}
		}
		data, _ := json.Marshal(v)
		return truncate(string(data), outputSummaryCharLimit)
	case []any:
		return fmt.Sprintf("Returned %d results", len(v))
	default:
		data, _ := json.Marshal(v)
		return truncate(string(data), outputSummaryCharLimit)
	}
}

func marshalOrString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func extractInsights(text string) []string {
	var insights []string
	for _, sentence := range splitSentences(text) {
		for _, phrase := range insightPhrases {
			if strings.Contains(strings.ToLower(sentence), phrase) {
				insights = append(insights, strings.TrimSpace(sentence))
				break
			}
		}
		if len(insights) >= maxInsights {
			break
		}
	}
	return insights
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '\n' })
	var out []string
	for _, s := range raw {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func extractSymbols(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range symbolPattern.FindAllString(text, -1) {
		if symbolStopWords[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func extractFiles(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range filePathPattern.FindAllString(text, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		capture := m[1]
		if strings.ContainsAny(capture, "/.") && !seen[capture] {
			seen[capture] = true
			out = append(out, capture)
		}
	}
	return out
}

func mergeCapped(existing, fresh []string, limit int) []string {
	seen := map[string]bool{}
	out := append([]string{}, existing...)
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range fresh {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) >= limit {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CompressConversation replaces the exchange log with only the last 5
// exchanges, folding everything older into compressed_summary.
func (m *Manager) CompressConversation(ctx context.Context, conv *vaultmodel.OracleConversation) {
	older, recent := splitOlderRecent(conv.Exchanges, recentWindow)
	if len(older) == 0 {
		return
	}

	newSummary := m.summarizeOlder(ctx, conv, older)

	conv.CompressedSummary = &newSummary
	conv.Exchanges = recent
	recentTokens := 0
	for _, e := range recent {
		recentTokens += e.Tokens
	}
	conv.TokensUsed = tokenest.Estimate(newSummary) + recentTokens
	conv.CompressionCount++
	conv.Status = vaultmodel.ConversationCompressed
}

func splitOlderRecent(exchanges []vaultmodel.Exchange, window int) (older, recent []vaultmodel.Exchange) {
	if len(exchanges) <= window {
		return nil, exchanges
	}
	cut := len(exchanges) - window
	return exchanges[:cut], exchanges[cut:]
}

func (m *Manager) summarizeOlder(ctx context.Context, conv *vaultmodel.OracleConversation, older []vaultmodel.Exchange) string {
	if m.LLM != nil && m.LLM.Available() {
		prompt := buildCompressionPrompt(conv, older)
		result, err := m.LLM.Complete(ctx, compressionModel, []llmclient.ChatMessage{
			{Role: "user", Content: prompt},
		}, compressionTemperature, compressionMaxTokens, compressionCallTimeout)
		if err == nil {
			return result.Content
		}
	}
	return fallbackCompression(conv, older)
}

func buildCompressionPrompt(conv *vaultmodel.OracleConversation, older []vaultmodel.Exchange) string {
	var b strings.Builder
	if conv.CompressedSummary != nil {
		b.WriteString("Existing summary:\n")
		b.WriteString(*conv.CompressedSummary)
		b.WriteString("\n\n")
	}
	b.WriteString("Exchanges to fold in:\n")
	for _, e := range older {
		fmt.Fprintf(&b, "- [%s] %s -> %s\n", e.ToolName, e.Input, e.Output)
	}
	b.WriteString("\nWrite a compressed summary. You MUST preserve every mentioned symbol and file path: ")
	b.WriteString(strings.Join(conv.MentionedSymbols, ", "))
	b.WriteString(" ; ")
	b.WriteString(strings.Join(conv.MentionedFiles, ", "))
	return b.String()
}

func fallbackCompression(conv *vaultmodel.OracleConversation, older []vaultmodel.Exchange) string {
	var b strings.Builder
	if conv.CompressedSummary != nil {
		b.WriteString(*conv.CompressedSummary)
		b.WriteString("\n")
	}
	b.WriteString("Symbols: ")
	b.WriteString(strings.Join(conv.MentionedSymbols, ", "))
	b.WriteString("\nFiles: ")
	b.WriteString(strings.Join(conv.MentionedFiles, ", "))

	var insights []string
	for _, e := range older {
		insights = append(insights, e.Insights...)
	}
	if len(insights) > 10 {
		insights = insights[:10]
	}
	if len(insights) > 0 {
		b.WriteString("\nInsights: ")
		b.WriteString(strings.Join(insights, "; "))
	}
	return b.String()
}

// GetConversationContext renders a markdown block of earlier (compressed)
// context followed by recent exchanges, proportionally truncated to
// maxTokens when set.
func GetConversationContext(conv vaultmodel.OracleConversation, maxTokens int) string {
	var b strings.Builder
	if conv.CompressedSummary != nil && *conv.CompressedSummary != "" {
		b.WriteString("## Earlier Context\n")
		b.WriteString(*conv.CompressedSummary)
		b.WriteString("\n\n")
	}

	b.WriteString("## Recent Exchanges\n")
	exchanges := append([]vaultmodel.Exchange{}, conv.Exchanges...)
	sort.SliceStable(exchanges, func(i, j int) bool { return exchanges[i].Timestamp.Before(exchanges[j].Timestamp) })
	for _, e := range exchanges {
		fmt.Fprintf(&b, "### %s\nInput: %s\nOutput: %s\n", e.ToolName, e.Input, e.Output)
		if len(e.Insights) > 0 {
			fmt.Fprintf(&b, "Insights: %s\n", strings.Join(e.Insights, "; "))
		}
	}

	text := b.String()
	if maxTokens <= 0 {
		return text
	}
	if tokenest.Estimate(text) <= maxTokens {
		return text
	}
	budget := tokenest.Budget(maxTokens)
	if budget > len(text) {
		budget = len(text)
	}
	return text[:budget] + "\n\n[... truncated for token budget]"
}
