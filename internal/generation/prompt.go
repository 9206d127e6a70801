package generation

import (
	"fmt"
	"strings"

	"github.com/hyperjump/concierge/internal/models"
)

// Persona is the system instruction for the concierge.
const Persona = `You are a hyper-local concierge that recommends nearby places and products.
Your job is to tell the customer what they should do next (e.g., "Stop by X and grab Y").
Always reference the most relevant nearby store or action from the context.
Never claim that you can make, prepare, or serve items yourself; only recommend external locations.
Keep responses concise (2-3 sentences) and grounded in the provided context.
Bracketed tokens such as [PHONE_1] or [EMAIL_1] stand for the customer's private details.
Repeat a token exactly when you need to refer to it and never guess its value.`

// Render limits for the context block.
const (
	maxContextStores     = 3
	maxContextPromotions = 3
)

// Prompt is the generation input, in sections. Every section other than System must
// already be masked.
type Prompt struct {
	System    string
	Context   string
	Knowledge []string
	Message   string
}

// BuildPrompt assembles a prompt from a masked context block, retrieved chunks and the
// masked message.
func BuildPrompt(maskedContext string, chunks []models.RetrievedChunk, maskedMessage string) Prompt {
	knowledge := make([]string, 0, len(chunks))
	for _, c := range chunks {
		knowledge = append(knowledge, c.Text)
	}
	return Prompt{
		System:    Persona,
		Context:   maskedContext,
		Knowledge: knowledge,
		Message:   maskedMessage,
	}
}

// UserTurn renders every section except System.
func (p Prompt) UserTurn() string {
	var b strings.Builder
	if p.Context != "" {
		b.WriteString("CUSTOMER CONTEXT:\n")
		b.WriteString(p.Context)
		b.WriteString("\n\n")
	}
	if len(p.Knowledge) > 0 {
		b.WriteString("RELEVANT INFORMATION:\n")
		for _, k := range p.Knowledge {
			b.WriteString("- ")
			b.WriteString(k)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	b.WriteString("CUSTOMER MESSAGE: ")
	b.WriteString(p.Message)
	b.WriteString("\n\nRespond helpfully:")
	return b.String()
}

// String renders the whole prompt as one text.
func (p Prompt) String() string {
	if p.System == "" {
		return p.UserTurn()
	}
	return p.System + "\n\n" + p.UserTurn()
}

// RenderContext renders the enrichment bundle as the plain-text context block. The
// result may contain PII and must be masked before it reaches a model.
func RenderContext(bundle models.ContextBundle) string {
	var parts []string
	if u := bundle.Profile; u != nil {
		if u.Name != "" {
			parts = append(parts, "Customer: "+u.Name)
		}
		prefs := u.Preferences
		if len(prefs.FavoriteDrinks) > 0 {
			parts = append(parts, "Favorite drinks: "+strings.Join(prefs.FavoriteDrinks, ", "))
		}
		if len(prefs.Dietary) > 0 {
			parts = append(parts, "Dietary preferences: "+strings.Join(prefs.Dietary, ", "))
		}
		if prefs.PreferredTemperature != "" {
			parts = append(parts, "Prefers: "+prefs.PreferredTemperature+" drinks")
		}
		if n := len(u.PurchaseHistory); n > 0 {
			recent := u.PurchaseHistory[max(0, n-3):]
			items := make([]string, len(recent))
			for i, p := range recent {
				items[i] = p.Item
			}
			parts = append(parts, "Recent purchases: "+strings.Join(items, ", "))
		}
		if u.LoyaltyPoints > 0 {
			parts = append(parts, fmt.Sprintf("Loyalty points: %d", u.LoyaltyPoints))
		}
	}
	if len(bundle.NearbyStores) > 0 {
		stores := bundle.NearbyStores[:min(len(bundle.NearbyStores), maxContextStores)]
		info := make([]string, len(stores))
		for i, s := range stores {
			info[i] = fmt.Sprintf("%s (%.0fm away", s.Name, s.DistanceM)
			if s.Hours.Open != "" || s.Hours.Close != "" {
				info[i] += fmt.Sprintf(", open %s-%s", s.Hours.Open, s.Hours.Close)
			}
			info[i] += ")"
		}
		parts = append(parts, "Nearby stores: "+strings.Join(info, "; "))
	}
	if len(bundle.ActivePromotions) > 0 {
		promos := bundle.ActivePromotions[:min(len(bundle.ActivePromotions), maxContextPromotions)]
		titles := make([]string, len(promos))
		for i, p := range promos {
			titles[i] = p.Title
		}
		parts = append(parts, "Available promotions: "+strings.Join(titles, ", "))
	}
	return strings.Join(parts, "\n")
}
