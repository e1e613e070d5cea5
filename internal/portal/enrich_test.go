package portal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"apptsheet/internal/browser/browsertest"
	"apptsheet/internal/model"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestPhoneFromDetailHTML(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"data-qa button",
			`<body><button data-qa="customer-contact-number">+351 912 345 678</button></body>`,
			"+351 912 345 678",
		},
		{
			"partial data-qa hook",
			`<body><div data-qa="client-contact-number-block">919999999</div></body>`,
			"919999999",
		},
		{
			"tel link text",
			`<body><a href="tel:+351918888888">+351 918 888 888</a></body>`,
			"+351 918 888 888",
		},
		{
			"tel link href only",
			`<body><a href="tel:+351918888888"><img src="phone.svg"></a></body>`,
			"+351918888888",
		},
		{
			"no contact control",
			`<body><h1>Detalhes</h1></body>`,
			model.PhoneNotFound,
		},
		{
			"not html at all",
			``,
			model.PhoneNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, phoneFromDetailHTML(tt.html))
		})
	}
}

func TestEnrichPhonesSequential(t *testing.T) {
	fake := &browsertest.Fake{
		Visible: map[string]bool{
			`//*[text()="R1"]`: true,
			`//*[text()="R2"]`: true,
		},
		DefaultHTML: `<body><button data-qa="customer-contact-number">351912345678</button></body>`,
	}

	dir := EnrichPhones(context.Background(), fake, []string{"R1", "R2"})
	require.Equal(t, model.PhoneDirectory{
		"R1": "351912345678",
		"R2": "351912345678",
	}, dir)

	// Each cycle returns to the list before the next reference opens.
	var ops []string
	for _, c := range fake.Calls {
		ops = append(ops, c.Op)
	}
	require.Equal(t, []string{
		"wait", "click", "html", "back",
		"wait", "click", "html", "back",
	}, ops)
}

func TestEnrichPhonesRowFailureDoesNotAbort(t *testing.T) {
	// R1's reference never shows up in the list; R2 works.
	fake := &browsertest.Fake{
		Visible: map[string]bool{
			`//*[text()="R2"]`: true,
		},
		DefaultHTML: `<body><button data-qa="customer-contact-number">919999999</button></body>`,
	}

	dir := EnrichPhones(context.Background(), fake, []string{"R1", "R2"})
	require.Equal(t, model.PhoneNotFound, dir["R1"])
	require.Equal(t, "919999999", dir["R2"])
}
