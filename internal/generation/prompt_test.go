package generation

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderContext(t *testing.T) {
	bundle := models.ContextBundle{
		Profile: &models.Profile{
			UserID: "u1",
			Name:   "Ada",
			Preferences: models.Preferences{
				FavoriteDrinks:       []string{"chai latte"},
				Dietary:              []string{"vegan"},
				PreferredTemperature: "hot",
			},
			PurchaseHistory: []models.Purchase{{Item: "a"}, {Item: "b"}, {Item: "c"}, {Item: "d"}},
			LoyaltyPoints:   120,
		},
		NearbyStores: []models.Store{
			{Name: "Bean There", DistanceM: 42, Hours: models.Hours{Open: "07:00", Close: "19:00"}},
			{Name: "Kiosk", DistanceM: 99.6},
		},
		ActivePromotions: []models.Promotion{{Title: "Cocoa Hour"}, {Title: "Two for One"}},
	}
	want := strings.Join([]string{
		"Customer: Ada",
		"Favorite drinks: chai latte",
		"Dietary preferences: vegan",
		"Prefers: hot drinks",
		"Recent purchases: b, c, d",
		"Loyalty points: 120",
		"Nearby stores: Bean There (42m away, open 07:00-19:00); Kiosk (100m away)",
		"Available promotions: Cocoa Hour, Two for One",
	}, "\n")
	if diff := cmp.Diff(want, RenderContext(bundle)); diff != "" {
		t.Errorf("RenderContext mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderContext_Empty(t *testing.T) {
	assert.Equal(t, "", RenderContext(models.ContextBundle{}))
}

func TestRenderContext_CapsStores(t *testing.T) {
	stores := make([]models.Store, 5)
	for i := range stores {
		stores[i] = models.Store{Name: string(rune('A' + i))}
	}
	got := RenderContext(models.ContextBundle{NearbyStores: stores})
	assert.Contains(t, got, "C (0m away)")
	assert.NotContains(t, got, "D (")
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Customer: [EMAIL_1]", []models.RetrievedChunk{{Text: "Store: Bean There."}}, "I'm cold")

	assert.Equal(t, Persona, p.System)
	assert.Equal(t, []string{"Store: Bean There."}, p.Knowledge)
	want := "CUSTOMER CONTEXT:\nCustomer: [EMAIL_1]\n\nRELEVANT INFORMATION:\n- Store: Bean There.\n\nCUSTOMER MESSAGE: I'm cold\n\nRespond helpfully:"
	assert.Equal(t, want, p.UserTurn())
	assert.True(t, strings.HasPrefix(p.String(), Persona+"\n\n"))
}

func TestPrompt_UserTurnMinimal(t *testing.T) {
	p := Prompt{Message: "hi"}
	assert.Equal(t, "CUSTOMER MESSAGE: hi\n\nRespond helpfully:", p.String())
}

func TestEchoGenerator(t *testing.T) {
	p := Prompt{
		System:    "persona",
		Context:   "Customer: [EMAIL_1]",
		Knowledge: []string{"Manager line [PHONE_2]"},
		Message:   "Call me at [PHONE_1]",
	}
	got, err := EchoGenerator{}.Generate(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, p.UserTurn(), got)
	for _, token := range []string{"[EMAIL_1]", "[PHONE_2]", "[PHONE_1]"} {
		assert.Contains(t, got, token)
	}
	assert.NotContains(t, got, "persona")

	_, err = EchoGenerator{}.Generate(context.Background(), Prompt{})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = EchoGenerator{}.Generate(ctx, Prompt{Message: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	g, err := New(context.Background(), config.GenerationConfig{Provider: ProviderEcho})
	require.NoError(t, err)
	assert.IsType(t, EchoGenerator{}, g)

	_, err = New(context.Background(), config.GenerationConfig{Provider: ProviderGemini})
	assert.Error(t, err, "gemini without an API key")

	_, err = New(context.Background(), config.GenerationConfig{Provider: "gpt"})
	assert.Error(t, err)
}
