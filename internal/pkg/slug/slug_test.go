package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	cases := map[string]string{
		"BB Lower + Red/Green": "bb_lower_red_green",
		"My Dip Buyer":         "my_dip_buyer",
		"  trailing  spaces  ": "trailing_spaces",
		"already_good":         "already_good",
		"!!!":                  "",
		"":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Make(in), in)
	}
}
