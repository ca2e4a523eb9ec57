package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySoftware(t *testing.T) {
	cases := []struct {
		name     string
		doc      *RawDocument
		expected Software
	}{
		{"vanilla semver", &RawDocument{Version: rawVersion{Name: "1.21"}}, SoftwareVanilla},
		{"paper", &RawDocument{Version: rawVersion{Name: "Paper 1.21"}}, SoftwarePaper},
		{"purpur", &RawDocument{Version: rawVersion{Name: "Purpur 1.20.4"}}, SoftwarePurpur},
		{"folia", &RawDocument{Version: rawVersion{Name: "Folia 1.20"}}, SoftwareFolia},
		{"spigot", &RawDocument{Version: rawVersion{Name: "Spigot 1.20"}}, SoftwareSpigot},
		{"bukkit", &RawDocument{Version: rawVersion{Name: "CraftBukkit 1.20"}}, SoftwareBukkit},
		{"velocity", &RawDocument{Version: rawVersion{Name: "Velocity"}}, SoftwareVelocity},
		{"bungeecord", &RawDocument{Version: rawVersion{Name: "BungeeCord"}}, SoftwareBungeeCord},
		{"forge by name", &RawDocument{Version: rawVersion{Name: "forge-47.2.0"}}, SoftwareForge},
		{"forge by forgeData", &RawDocument{Version: rawVersion{Name: "1.20.1"}, ForgeData: &rawForgeData{}}, SoftwareForge},
		{"legacy FML", &RawDocument{Version: rawVersion{Name: "1.7.10"}, ModInfo: &rawModInfo{Type: "FML"}}, SoftwareForge},
		{"unknown", &RawDocument{Version: rawVersion{Name: "some custom server"}}, SoftwareUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ClassifySoftware(tc.doc))
		})
	}
}

func TestFlattenMOTDString(t *testing.T) {
	assert.Equal(t, "Hello", FlattenMOTD("Hello"))
}

func TestFlattenMOTDObject(t *testing.T) {
	desc := map[string]interface{}{
		"text": "§aWelcome ",
		"extra": []interface{}{
			map[string]interface{}{"text": "to §cthe server"},
		},
	}
	assert.Equal(t, "Welcome to the server", FlattenMOTD(desc))
}

func TestExtractModsDedup(t *testing.T) {
	doc := &RawDocument{
		ForgeData: &rawForgeData{
			Mods: []struct {
				ModID     string `json:"modId"`
				ModMarker string `json:"modmarker"`
			}{
				{ModID: "jei", ModMarker: "15.2.0"},
				{ModID: "jei", ModMarker: "15.2.0"},
			},
		},
	}
	mods := ExtractMods(doc)
	assert.Equal(t, []ModRef{{ModID: "jei", Version: "15.2.0"}}, mods)
}

func TestGuessOnlineModeEmpty(t *testing.T) {
	assert.Equal(t, OnlineModeUnknown, GuessOnlineMode(nil))
}

func TestGuessOnlineModeOffline(t *testing.T) {
	hash := offlineUUIDHex("Notch")
	sample := []PlayerSample{{Name: "Notch", UUID: hash}}
	assert.Equal(t, OnlineModeLikelyOffline, GuessOnlineMode(sample))
}

func TestDecodeFavicon(t *testing.T) {
	_, _, ok := DecodeFavicon("not-a-data-uri")
	assert.False(t, ok)
}
