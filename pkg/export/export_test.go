package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset() Dataset {
	return Dataset{
		Title:   "CS101 - Fall 2024",
		Headers: []string{"Student ID", "Name", "Enrolled At"},
		Rows: [][]string{
			{"2024-CS-0001", "Ada Lovelace", "2024-01-05"},
			{"2024-CS-0002", "Alan, Turing", "2024-01-06"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.Equal(t, "Student ID,Name,Enrolled At\n2024-CS-0001,Ada Lovelace,2024-01-05\n2024-CS-0002,\"Alan, Turing\",2024-01-06\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderRejectsRaggedRows(t *testing.T) {
	data := rosterDataset()
	data.Rows = append(data.Rows, []string{"only-one"})
	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestForFormat(t *testing.T) {
	r, err := ForFormat(FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", r.ContentType())
	r, err = ForFormat("")
	require.NoError(t, err)
	assert.Equal(t, "csv", r.Extension())
	_, err = ForFormat("xlsx")
	assert.Error(t, err)
}
