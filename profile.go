package tbremote

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Family 表示仪表系列。
type Family uint8

const (
	FamilyONA1000   Family = iota // ONA-1000：单次端口列表握手
	FamilyTBERD5800               // T-BERD 5800：两段式端口握手
)

func (f Family) String() string {
	switch f {
	case FamilyONA1000:
		return "ona1000"
	case FamilyTBERD5800:
		return "tberd5800"
	}
	return fmt.Sprintf("Family(%d)", uint8(f))
}

// ParseFamily 解析仪表系列名称，不区分大小写，忽略 '-' 和 ' '。
func ParseFamily(s string) (Family, error) {
	norm := strings.NewReplacer("-", "", " ", "", "_", "").Replace(strings.ToLower(s))
	switch norm {
	case "ona", "ona1000":
		return FamilyONA1000, nil
	case "tberd", "tberd5800", "5800":
		return FamilyTBERD5800, nil
	}
	return 0, NewValidationError("family", s, "expected ona1000 or tberd5800")
}

// CatalogEntry 是常用应用目录中的一项。
type CatalogEntry struct {
	Label string `yaml:"label"`
	AppID string `yaml:"app"`
}

// Profile 描述一个仪表系列的固定参数。
// 控制器构造时注入，之后只读。
type Profile struct {
	Family        Family
	Name          string
	BootstrapPort int

	// ModuleName 是 ONA 端口列表中要查找的模块
	ModuleName string

	// ModuleParams 是 T-BERD 端口查询的参数，例如 BOTH,BASE,"BERT"
	ModuleParams string

	ValidPorts []int
	Catalog    []CatalogEntry

	MinLaunchTimeout  time.Duration
	HandshakeAttempts int
	SettleDelay       time.Duration
	RetryDelay        time.Duration

	// GUIOnExitWhenVisible 为 false 时，可见模式下退出不发送 *GUI
	GUIOnExitWhenVisible bool
}

// ONA1000Profile 返回 ONA-1000 的内置参数。
func ONA1000Profile() Profile {
	return Profile{
		Family:        FamilyONA1000,
		Name:          "ONA-1000",
		BootstrapPort: ONABootstrapPort,
		ModuleName:    "TM400G-1",
		ValidPorts:    []int{1, 2},
		Catalog: []CatalogEntry{
			{Label: "100GE Layer 2 Traffic Term", AppID: "TermEth100GL2Traffic"},
			{Label: "200GE Layer 2 Traffic Term", AppID: "TermEth200GL2Traffic"},
			{Label: "400GE Layer 2 Traffic Term", AppID: "TermEth400GL2Traffic"},
			{Label: "10GE Layer 2 Traffic Term", AppID: "TermEth10GL2Traffic"},
			{Label: "25GE Layer 2 Traffic Term", AppID: "TermEth25GL2Traffic"},
			{Label: "100GE Layer 2 Traffic Term KP4 FEC", AppID: "TermEth100GL2TrafficKP4FEC"},
		},
		MinLaunchTimeout:     90 * time.Second,
		HandshakeAttempts:    2,
		SettleDelay:          time.Second,
		RetryDelay:           2 * time.Second,
		GUIOnExitWhenVisible: true,
	}
}

// TBERD5800Profile 返回 T-BERD 5800 的内置参数。
func TBERD5800Profile() Profile {
	return Profile{
		Family:        FamilyTBERD5800,
		Name:          "T-BERD 5800",
		BootstrapPort: TBERDBootstrapPort,
		ModuleParams:  `BOTH,BASE,"BERT"`,
		ValidPorts:    []int{1, 2},
		Catalog: []CatalogEntry{
			{Label: "100GE Layer 2 Traffic Term", AppID: "TermEth100GL2Traffic"},
			{Label: "100GE Layer 2 Traffic Term RS-FEC", AppID: "TermEth100GL2TrafficRsFEC"},
			{Label: "10GE Layer 2 Traffic Term", AppID: "TermEth10GL2Traffic"},
			{Label: "25GE Layer 2 Traffic Term", AppID: "TermEth25GL2Traffic"},
		},
		MinLaunchTimeout:     MinLaunchTimeout,
		HandshakeAttempts:    1,
		SettleDelay:          0,
		RetryDelay:           time.Second,
		GUIOnExitWhenVisible: false,
	}
}

// ProfileFor 返回给定系列的内置参数。
func ProfileFor(f Family) Profile {
	if f == FamilyTBERD5800 {
		return TBERD5800Profile()
	}
	return ONA1000Profile()
}

// Clone 返回深拷贝，切片不与原值共享。
func (p Profile) Clone() Profile {
	p.ValidPorts = slices.Clone(p.ValidPorts)
	p.Catalog = slices.Clone(p.Catalog)
	return p
}

// WithBootstrapPort 返回引导端口被替换后的副本。
func (p Profile) WithBootstrapPort(port int) Profile {
	c := p.Clone()
	c.BootstrapPort = port
	return c
}

// IsValidPort 报告 port 是否为合法槽位。
func (p Profile) IsValidPort(port int) bool {
	return slices.Contains(p.ValidPorts, port)
}

// profileFile 是 YAML 档案文件的结构，时长以字符串书写（例如 "90s"）。
type profileFile struct {
	Family            string         `yaml:"family"`
	Name              string         `yaml:"name"`
	BootstrapPort     int            `yaml:"bootstrap_port"`
	ModuleName        string         `yaml:"module"`
	ModuleParams      string         `yaml:"module_params"`
	ValidPorts        []int          `yaml:"valid_ports"`
	Catalog           []CatalogEntry `yaml:"catalog"`
	MinLaunchTimeout  string         `yaml:"min_launch_timeout"`
	HandshakeAttempts int            `yaml:"handshake_attempts"`
	SettleDelay       string         `yaml:"settle_delay"`
	RetryDelay        string         `yaml:"retry_delay"`
}

// LoadProfile 从 YAML 文件读取仪表档案。未填写的字段沿用该系列的内置值。
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile 解析 YAML 档案内容。
func ParseProfile(data []byte) (Profile, error) {
	var pf profileFile
	if err := yaml.UnmarshalStrict(data, &pf); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}

	family, err := ParseFamily(pf.Family)
	if err != nil {
		return Profile{}, err
	}
	p := ProfileFor(family)

	if pf.Name != "" {
		p.Name = pf.Name
	}
	if pf.BootstrapPort != 0 {
		p.BootstrapPort = pf.BootstrapPort
	}
	if pf.ModuleName != "" {
		p.ModuleName = pf.ModuleName
	}
	if pf.ModuleParams != "" {
		p.ModuleParams = pf.ModuleParams
	}
	if len(pf.ValidPorts) > 0 {
		p.ValidPorts = pf.ValidPorts
	}
	if len(pf.Catalog) > 0 {
		p.Catalog = pf.Catalog
	}
	if pf.HandshakeAttempts > 0 {
		p.HandshakeAttempts = pf.HandshakeAttempts
	}

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"min_launch_timeout", pf.MinLaunchTimeout, &p.MinLaunchTimeout},
		{"settle_delay", pf.SettleDelay, &p.SettleDelay},
		{"retry_delay", pf.RetryDelay, &p.RetryDelay},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Profile{}, NewValidationError(d.field, d.raw, "not a duration")
		}
		*d.dst = v
	}
	return p, nil
}
