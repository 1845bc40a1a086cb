package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "l'avis du projet", Canonicalize("l\u2019avis du   projet"))
}

func TestProjectName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "colon", raw: "F09324P0001 : centrale solaire", want: "Centrale solaire (F09324P0001)"},
		{name: "lower id", raw: "f09324p0001: Centrale solaire", want: "Centrale solaire (F09324P0001)"},
		{name: "dash", raw: "F09324P0001 - Défrichement", want: "Défrichement (F09324P0001)"},
		{name: "suffix after underscore", raw: "f093_project : some area", want: "Some area (F093)"},
		{name: "trailing underscore", raw: "F093_ : zone", want: "Zone (F093)"},
		{name: "quoted", raw: `F09324P0002 : "Parc éolien"`, want: "Parc éolien (F09324P0002)"},
		{name: "french quotes", raw: "F09324P0002 : «Parc»", want: "Parc (F09324P0002)"},
		{name: "trailing punctuation", raw: "F09324P0003 : forage.", want: "Forage (F09324P0003)"},
		{name: "special spaces", raw: "F09324P0004\u00a0: l\u2019étang", want: "L'étang (F09324P0004)"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ProjectName(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProjectNameMalformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "Centrale solaire sans identifiant", "F093 :"} {
		_, err := ProjectName(raw)
		assert.ErrorIs(t, err, ErrMalformedProject, raw)
	}
}

func TestMunicipalities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		info       string
		department string
		want       string
		ok         bool
	}{
		{name: "code first", info: "Pétitionnaire : X\nCommune(s) du projet : 05 Gap\nDécision : Y", department: "05", want: "Gap (05)", ok: true},
		{name: "code first with dash", info: "Commune(s) du projet : 13 - Arles", department: "13", want: "Arles (13)", ok: true},
		{name: "department appended", info: "Commune(s) du projet : Gap", department: "05", want: "Gap (05)", ok: true},
		{name: "already coded", info: "Commune(s) du projet : Gap(05)", department: "04", want: "Gap (05)", ok: true},
		{name: "list", info: "Commune(s) du projet : Nice (06) ; Antibes (06 )", department: "06", want: "Nice (06), Antibes (06)", ok: true},
		{name: "absent", info: "Pétitionnaire : X", department: "05"},
		{name: "empty line", info: "Commune(s) du projet : \nDécision : Y", department: "05"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Municipalities(tt.info, tt.department)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProject(t *testing.T) {
	t.Parallel()

	got, err := Project("f093_project : some area", "Commune(s) du projet : 84 Avignon\n", "84")
	require.NoError(t, err)
	assert.Equal(t, "Some area (F093) - Avignon (84)", got)

	got, err = Project("f093_project : some area", "", "84")
	require.NoError(t, err)
	assert.Equal(t, "Some area (F093)", got)
}

func TestProjectIDAndDepartments(t *testing.T) {
	t.Parallel()

	project := "Parc (F09324P0001) - Gap (05), Sisteron (04)"
	assert.Equal(t, "F09324P0001", ProjectID(project))
	assert.Equal(t, []string{"05", "04"}, DepartmentCodes(project))
	assert.Empty(t, ProjectID("Parc - Gap (05)"))
}

func TestProjectIDSkipsAcronymsInName(t *testing.T) {
	t.Parallel()

	project, err := Project("F09324P0001 : Centrale photovoltaïque (CPV) de Gap", "", "05")
	require.NoError(t, err)
	assert.Equal(t, "Centrale photovoltaïque (CPV) de Gap (F09324P0001)", project)
	assert.Equal(t, "F09324P0001", ProjectID(project))

	withTowns, err := Project("F09324P0001 : Parc (CPV) - extension", "Commune(s) du projet : Gap", "05")
	require.NoError(t, err)
	assert.Equal(t, "F09324P0001", ProjectID(withTowns))
}

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "arrêté de décision", want: "Arrêté de décision"},
		{raw: "f09324p0001 ap  signé", want: "F09324P0001 Arrêté préfectoral signé"},
		{raw: "f09324p0001 décision", want: "F09324P0001 Décision"},
		{raw: "f09324p0001", want: "F09324P0001"},
		{raw: "décision", want: "Décision"},
		{raw: "F09324P0001-2 Ap", want: "F09324P0001-2 Arrêté préfectoral"},
	}

	for _, tt := range tests {
		got, err := Title(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := Title("   ")
	assert.ErrorIs(t, err, ErrEmptyTitle)
}

func TestInfoBlock(t *testing.T) {
	t.Parallel()

	got := InfoBlock([]string{"  Pétitionnaire : ACME", "\n  ", " Date de réception : 01/02/2024", "Commune(s) du projet : 05 Gap"})
	assert.Equal(t, "Pétitionnaire : ACME\nDate de réception : 01/02/2024Commune(s) du projet : 05 Gap", got)
}
