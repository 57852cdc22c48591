package config

import (
	"path/filepath"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
)

// DefaultCatalog returns descriptors for the wrapped tool suite, with
// executables rooted under toolsDir. Ports are assigned sequentially
// from the default allocation base; the config file can override any
// entry wholesale via the tools section.
func DefaultCatalog(toolsDir string) []tool.ToolDescriptor {
	pip := []string{"pip", "install", "-r", "requirements.txt"}
	npmBuild := []string{"npm", "install", "&&", "npm", "run", "build"}
	configureMake := []string{"./configure", "&&", "make"}
	goBuild := func(bin string) []string { return []string{"go", "build", "-o", bin, "."} }

	at := func(parts ...string) string {
		return filepath.Join(append([]string{toolsDir}, parts...)...)
	}

	return []tool.ToolDescriptor{
		{
			Name:           "nmap",
			BuildType:      tool.BuildTypeCompiled,
			BuildCommand:   configureMake,
			ExecutablePath: at("nmap", "nmap"),
			DefaultPort:    7001,
			Enabled:        true,
			Optional:       true,
			Dependencies:   []string{"make", "gcc"},
		},
		{
			Name:           "argus",
			BuildType:      tool.BuildTypeInterpretedDeps,
			BuildCommand:   pip,
			ExecutablePath: at("Argus", "argus.py"),
			DefaultPort:    7002,
			Enabled:        true,
			Dependencies:   []string{"python3", "pip"},
		},
		{
			Name:           "kraken",
			BuildType:      tool.BuildTypeInterpretedDeps,
			BuildCommand:   pip,
			ExecutablePath: at("Kraken", "kraken.py"),
			DefaultPort:    7003,
			Enabled:        true,
			Dependencies:   []string{"python3", "pip"},
		},
		{
			Name:           "metabigor",
			BuildType:      tool.BuildTypeCompiled,
			BuildCommand:   goBuild("metabigor"),
			ExecutablePath: at("Metabigor", "metabigor"),
			DefaultPort:    7004,
			Enabled:        true,
			Dependencies:   []string{"go"},
		},
		{
			Name:           "osmedeus",
			BuildType:      tool.BuildTypeCompiled,
			BuildCommand:   goBuild("osmedeus"),
			ExecutablePath: at("Osmedeus", "osmedeus"),
			DefaultPort:    7005,
			Enabled:        true,
			Dependencies:   []string{"go"},
		},
		{
			Name:           "spiderfoot",
			BuildType:      tool.BuildTypeInterpretedDeps,
			BuildCommand:   pip,
			ExecutablePath: at("Spiderfoot", "sf.py"),
			DefaultPort:    7006,
			HealthURL:      "http://localhost:7006/",
			Enabled:        true,
			Dependencies:   []string{"python3", "pip"},
		},
		{
			Name:           "social_analyzer",
			BuildType:      tool.BuildTypeInterpretedDeps,
			BuildCommand:   pip,
			ExecutablePath: at("Social-Analyzer", "app.py"),
			DefaultPort:    7007,
			Enabled:        true,
			Dependencies:   []string{"python3", "pip"},
		},
		{
			Name:           "phonesploit",
			BuildType:      tool.BuildTypeInterpretedDeps,
			BuildCommand:   pip,
			ExecutablePath: at("PhoneSploit", "phonesploit.py"),
			DefaultPort:    7008,
			Enabled:        true,
			Optional:       true,
			Dependencies:   []string{"python3", "pip", "adb"},
		},
		{
			Name:           "vajra",
			BuildType:      tool.BuildTypeInterpretedDeps,
			BuildCommand:   pip,
			ExecutablePath: at("Vajra", "vajra.py"),
			DefaultPort:    7009,
			HealthURL:      "http://localhost:7009/",
			Enabled:        true,
			Dependencies:   []string{"python3", "pip"},
		},
		{
			Name:           "storm_breaker",
			BuildType:      tool.BuildTypeInterpretedDeps,
			BuildCommand:   pip,
			ExecutablePath: at("Storm-Breaker", "st.py"),
			DefaultPort:    7010,
			Enabled:        true,
			Optional:       true,
			Dependencies:   []string{"python3", "pip", "php"},
		},
		{
			Name:           "dismap",
			BuildType:      tool.BuildTypeCompiled,
			BuildCommand:   goBuild("dismap"),
			ExecutablePath: at("dismap", "dismap"),
			DefaultPort:    7011,
			Enabled:        true,
			Dependencies:   []string{"go"},
		},
		{
			Name:           "thc_hydra",
			BuildType:      tool.BuildTypeCompiled,
			BuildCommand:   configureMake,
			ExecutablePath: at("thc-hydra", "hydra"),
			DefaultPort:    7012,
			Enabled:        true,
			Dependencies:   []string{"make", "gcc"},
		},
		{
			Name:           "webstor",
			BuildType:      tool.BuildTypeInterpretedDeps,
			BuildCommand:   pip,
			ExecutablePath: at("WebStor", "webstor.py"),
			DefaultPort:    7013,
			Enabled:        true,
			Optional:       true,
			Dependencies:   []string{"python3", "pip", "mysql"},
		},
		{
			Name:           "sherlock",
			BuildType:      tool.BuildTypeInterpretedDeps,
			BuildCommand:   pip,
			ExecutablePath: at("Sherlock", "sherlock.py"),
			DefaultPort:    7014,
			Enabled:        true,
			Dependencies:   []string{"python3", "pip"},
		},
		{
			Name:           "redteam_toolkit",
			BuildType:      tool.BuildTypeInterpretedDeps,
			BuildCommand:   pip,
			ExecutablePath: at("RedTeam_ToolKit", "manage.py"),
			DefaultPort:    7015,
			HealthURL:      "http://localhost:7015/",
			Enabled:        true,
			Dependencies:   []string{"python3", "pip"},
		},
		{
			Name:           "ui_tars",
			BuildType:      tool.BuildTypeScripted,
			BuildCommand:   npmBuild,
			ExecutablePath: at("UI-TARS", "index.js"),
			DefaultPort:    7016,
			Enabled:        true,
			Optional:       true,
			Dependencies:   []string{"node", "npm"},
		},
		{
			Name:           "web_check",
			BuildType:      tool.BuildTypeScripted,
			BuildCommand:   npmBuild,
			ExecutablePath: at("web-check", "server.js"),
			DefaultPort:    7017,
			Enabled:        true,
			Optional:       true,
			Dependencies:   []string{"node", "npm"},
		},
	}
}
