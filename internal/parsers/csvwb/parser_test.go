package csvwb

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

func parse(t *testing.T, input string) *domain.ParsedWorkbook {
	t.Helper()
	wb, err := New().Parse(context.Background(), "/data/Sales.csv", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	return wb
}

func TestParse_SingleSection(t *testing.T) {
	wb := parse(t, "Region,Q1,Q2\nNorth,120,130\nSouth,90,95\n")

	assert.Equal(t, "Sales.csv", wb.Name)
	assert.Equal(t, "/data/Sales.csv", wb.Source)
	sheet := wb.Sheets[0]
	assert.Equal(t, "Sales", sheet.Name)
	assert.Equal(t, []string{"Region", "Q1", "Q2"}, sheet.Headers)
	assert.Equal(t, [][]string{{"North", "120", "130"}, {"South", "90", "95"}}, sheet.Rows)
	assert.Nil(t, sheet.Sections)
}

func TestParse_BlankLinesSplitSections(t *testing.T) {
	wb := parse(t, "Region,Q1\nNorth,120\nSouth,90\n\nEast,70\n")

	sheet := wb.Sheets[0]
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, []domain.SectionHint{
		{Start: 0, End: 2},
		{Start: 2, End: 3},
	}, sheet.Sections)
}

func TestParse_CommaOnlyRowsSplitSections(t *testing.T) {
	wb := parse(t, "Region,Q1\nNorth,120\n,\nEast,70\n")

	assert.Equal(t, []domain.SectionHint{
		{Start: 0, End: 1},
		{Start: 1, End: 2},
	}, wb.Sheets[0].Sections)
}

func TestParse_LabelAfterBlank(t *testing.T) {
	input := "Region,Q1\nNorth,120\n\nDomestic,\nEast,70\nWest,60\n"
	wb := parse(t, input)

	sheet := wb.Sheets[0]
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, []domain.SectionHint{
		{Start: 0, End: 1},
		{Start: 1, End: 3, Label: "Domestic"},
	}, sheet.Sections)
}

func TestParse_LeadingLabel(t *testing.T) {
	input := "Region,Q1\n\nTotals\nAll,300\n"
	wb := parse(t, input)

	assert.Equal(t, []domain.SectionHint{{Start: 0, End: 1, Label: "Totals"}}, wb.Sheets[0].Sections)
}

func TestParse_SingleColumnRowsAreData(t *testing.T) {
	wb := parse(t, "Name\nAlice\n\nBob\n")

	sheet := wb.Sheets[0]
	assert.Equal(t, [][]string{{"Alice"}, {"Bob"}}, sheet.Rows)
	assert.Len(t, sheet.Sections, 2)
}

func TestParse_MultilineQuotedField(t *testing.T) {
	wb := parse(t, "Item,Note\nA,\"line one\nline two\"\nB,ok\n")

	sheet := wb.Sheets[0]
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "line one\nline two", sheet.Rows[0][1])
	assert.Nil(t, sheet.Sections)
}

func TestParse_TrimsCells(t *testing.T) {
	wb := parse(t, " Region , Q1 \n North , 120 \n")

	sheet := wb.Sheets[0]
	assert.Equal(t, []string{"Region", "Q1"}, sheet.Headers)
	assert.Equal(t, []string{"North", "120"}, sheet.Rows[0])
}

func TestParse_Empty(t *testing.T) {
	wb := parse(t, "")

	assert.Empty(t, wb.Sheets[0].Headers)
	assert.Empty(t, wb.Sheets[0].Rows)
}

func TestParse_Malformed(t *testing.T) {
	_, err := New().Parse(context.Background(), "x.csv", strings.NewReader("a,\"b\nc"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParse_Semicolon(t *testing.T) {
	wb, err := NewWithComma(';').Parse(context.Background(), "eu.csv", strings.NewReader("A;B\n1;2\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, wb.Sheets[0].Headers)
}

func TestParse_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Parse(ctx, "x.csv", strings.NewReader("a,b\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".csv"}, New().Extensions())
}
