package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierdocs/docuflow/internal/pdf/pdftest"
)

func TestPageCount(t *testing.T) {
	for _, pages := range []int{1, 3, 12} {
		doc := pdftest.NewDocument(pages)
		count, err := PageCount(doc)
		require.NoError(t, err)
		assert.Equal(t, pages, count)
	}
}

func TestPageCount_InvalidBuffer(t *testing.T) {
	_, err := PageCount([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestExtractPage(t *testing.T) {
	doc := pdftest.NewDocument(3)

	for index := 0; index < 3; index++ {
		single, err := ExtractPage(doc, index)
		require.NoError(t, err)
		require.NotEmpty(t, single)

		count, err := PageCount(single)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "extracted buffer must hold exactly one page")
	}
}

func TestExtractPage_DoesNotModifyInput(t *testing.T) {
	doc := pdftest.NewDocument(2)
	before := append([]byte(nil), doc...)

	_, err := ExtractPage(doc, 1)
	require.NoError(t, err)
	assert.Equal(t, before, doc)
}

func TestExtractPage_OutOfRange(t *testing.T) {
	doc := pdftest.NewDocument(2)

	for _, index := range []int{-1, 2, 10} {
		_, err := ExtractPage(doc, index)
		assert.ErrorIs(t, err, ErrPageOutOfRange, "index %d", index)
	}
}
