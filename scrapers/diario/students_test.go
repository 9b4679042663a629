package diario

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseStudentCsv(t *testing.T) {
	data := []byte("Matrícula;Nome;Situação\n20240101;Ana Beatriz Souza;Ativo\n20240102;Pedro Cardoso;Ativo\n;;\n")

	students, err := ParseStudentCsv(data)
	require.NoError(t, err)

	diff := cmp.Diff([]StudentRecord{
		{ExternalID: "20240101", Name: "Ana Beatriz Souza"},
		{ExternalID: "20240102", Name: "Pedro Cardoso"},
	}, students)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestParseStudentCsvReorderedColumns(t *testing.T) {
	data := []byte("Nome;Matricula\nAna Beatriz Souza;20240101\n")

	students, err := ParseStudentCsv(data)
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.Equal(t, "20240101", students[0].ExternalID)
	require.Equal(t, "Ana Beatriz Souza", students[0].Name)
}

func TestParseStudentCsvMissingColumns(t *testing.T) {
	_, err := ParseStudentCsv([]byte("Foo;Bar\n1;2\n"))
	require.Error(t, err)
}
