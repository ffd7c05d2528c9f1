package hid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsagePageShortAndLongForm(t *testing.T) {
	assert.Equal(t, []byte{0x05, 0x01}, UsagePage{Page: 0x01}.bytes())
	assert.Equal(t, []byte{0x06, 0x00, 0x0c}, UsagePage{Page: 0x0c00}.bytes())
}

func TestCollectionWrapsItemsAndAppendsEndCollection(t *testing.T) {
	r := Report{Items: []Item{
		Collection{Kind: CollectionApplication, Items: []Item{ReportSize{Bits: 8}}},
	}}
	b := r.Bytes()
	assert.Equal(t, byte(0xa1), b[0]) // Collection(Application)
	assert.Equal(t, byte(0x01), b[1])
	assert.Equal(t, byte(0x75), b[2]) // Report Size
	assert.Equal(t, byte(0x08), b[3])
	assert.Equal(t, byte(0xc0), b[len(b)-1]) // End Collection
}

func TestReportBytesConcatenatesInOrder(t *testing.T) {
	r := Report{Items: []Item{
		UsagePage{Page: UsagePageGenericDesktop},
		ReportCount{Count: 1},
	}}
	assert.Equal(t, []byte{0x05, 0x01, 0x95, 0x01}, r.Bytes())
}
