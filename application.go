package tbremote

import "strings"

// Application 标识仪表上运行的一个测试应用。
// 构造后不再修改。
type Application struct {
	Name string // 应用名，例如 TermEth100GL2Traffic
	Port string // 槽位端口，1..N
	ID   string // 仪表分配的组合 ID，形如 base_suffix，可为空
}

// NewApplication 由显式的名称和端口创建 Application。
func NewApplication(name, port string) Application {
	return Application{Name: name, Port: port}
}

// ParseApplication 解析 "name [port]" 形式的字符串。
// 只有一个词时端口为空；否则最后一个词是端口，其余词去掉空白后拼接为名称。
func ParseApplication(s string) Application {
	fields := strings.Fields(s)
	switch len(fields) {
	case 0:
		return Application{}
	case 1:
		return Application{Name: fields[0]}
	}
	return Application{
		Name: strings.Join(fields[:len(fields)-1], ""),
		Port: fields[len(fields)-1],
	}
}

// ApplicationFromID 由组合 ID 创建 Application。
// 端口取最后一段的最后一个字符。
func ApplicationFromID(id string) Application {
	id = strings.TrimSpace(id)
	parts := strings.Split(id, "_")
	if len(parts) == 1 {
		return Application{Name: id, ID: id}
	}
	last := parts[len(parts)-1]
	app := Application{
		Name: strings.Join(parts[:len(parts)-1], ""),
		ID:   id,
	}
	if last != "" {
		app.Port = last[len(last)-1:]
	}
	return app
}

// ResolveApplication 含 "_" 且不含空格时按 ID 解析，否则按 "name [port]" 解析。
func ResolveApplication(s string) Application {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "_") && !strings.Contains(s, " ") {
		return ApplicationFromID(s)
	}
	return ParseApplication(s)
}

// Equal 两者都有 ID 时比较 ID，否则比较名称和端口。
func (a Application) Equal(b Application) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return a.Name == b.Name && a.Port == b.Port
}

// IsZero 报告 a 是否为空值。
func (a Application) IsZero() bool {
	return a.Name == "" && a.Port == "" && a.ID == ""
}

// LaunchName 返回 :SYST:APPL:LAUN 使用的名称。
func (a Application) LaunchName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// SelectID 返回选择应用时使用的标识。
func (a Application) SelectID() string {
	if a.ID != "" {
		return a.ID
	}
	if a.Port == "" {
		return a.Name
	}
	return a.Name + "_" + a.Port
}

func (a Application) String() string {
	if a.ID != "" {
		return a.ID
	}
	if a.Port == "" {
		return a.Name
	}
	return a.Name + " " + a.Port
}

// findApplication 在 apps 中查找与 target 相等的应用。
func findApplication(apps []Application, target Application) (Application, bool) {
	for _, app := range apps {
		if app.Equal(target) {
			return app, true
		}
	}
	return Application{}, false
}

// PortsInUse 返回运行中应用占用的端口集合。
func PortsInUse(apps []Application) map[string]Application {
	ports := make(map[string]Application, len(apps))
	for _, app := range apps {
		if app.Port == "" {
			continue
		}
		if _, ok := ports[app.Port]; !ok {
			ports[app.Port] = app
		}
	}
	return ports
}
