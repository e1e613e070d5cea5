package portal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"apptsheet/internal/browser"
	"apptsheet/internal/browser/browsertest"
)

func TestDismissConsentKnownPattern(t *testing.T) {
	fake := &browsertest.Fake{
		Visible: map[string]bool{`#onetrust-accept-btn-handler`: true},
	}

	require.True(t, DismissConsent(context.Background(), fake))

	last := fake.Calls[len(fake.Calls)-1]
	require.Equal(t, "click", last.Op)
	require.Equal(t, `#onetrust-accept-btn-handler`, last.Arg)
}

func TestDismissConsentInsideFrame(t *testing.T) {
	frame := browser.Frame{ID: "cmp-frame"}
	fake := &browsertest.Fake{
		FrameList: []browser.Frame{frame},
		Visible: map[string]bool{
			"cmp-frame|#didomi-notice-agree-button": true,
		},
	}

	require.True(t, DismissConsent(context.Background(), fake))
}

func TestDismissConsentTextFallback(t *testing.T) {
	fake := &browsertest.Fake{
		Visible: map[string]bool{`//button[contains(., 'Aceitar')]`: true},
	}

	require.True(t, DismissConsent(context.Background(), fake))
}

func TestDismissConsentAbsentBannerIsNotAnError(t *testing.T) {
	fake := &browsertest.Fake{}
	require.False(t, DismissConsent(context.Background(), fake))
}
