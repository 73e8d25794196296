package initiators

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// commandWords 命令协议的首个单词
var commandWords = [][]byte{
	[]byte("PING"), []byte("STAT"), []byte("LAST"), []byte("HELP"), []byte("QUIT"),
}

// commands 行文本命令处理
type commands struct {
	catalog pkgif.MetricCatalog
	stats   StatsSource
}

// exec 执行一条命令，返回回复与是否结束会话
func (c *commands) exec(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false
	}

	switch strings.ToUpper(fields[0]) {
	case "PING":
		return "PONG", false
	case "STAT":
		return c.stat(), false
	case "LAST":
		if len(fields) != 2 {
			return "ERR usage: LAST <name>", false
		}
		if c.catalog == nil {
			return "ERR no catalog", false
		}
		p, ok := c.catalog.Last(fields[1])
		if !ok {
			return "ERR unknown series " + fields[1], false
		}
		return FormatLine(p), false
	case "HELP":
		return "PING | STAT | LAST <name> | HELP | QUIT", false
	case "QUIT":
		return "BYE", true
	default:
		return "ERR unknown command " + fields[0], false
	}
}

func (c *commands) stat() string {
	counts := map[string]int64{}
	if c.stats != nil {
		for k, v := range c.stats.Counts() {
			counts[k] = v
		}
	}
	if c.catalog != nil {
		counts["series"] = int64(len(c.catalog.Names()))
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("OK")
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%d", k, counts[k])
	}
	return sb.String()
}

// serve 在流上运行命令循环，直到 QUIT 或读结束
func (c *commands) serve(rw io.ReadWriter) error {
	sc := bufio.NewScanner(rw)
	sc.Buffer(make([]byte, 0, 256), MaxLineBytes)
	for sc.Scan() {
		reply, quit := c.exec(sc.Text())
		if reply == "" {
			continue
		}
		if _, err := io.WriteString(rw, reply+"\n"); err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
	return sc.Err()
}

// ============================================================================
//                              Command 初始器
// ============================================================================

// Command 行文本命令协议初始器
type Command struct {
	base
	cmds *commands
}

var _ pkgif.Initiator = (*Command)(nil)

// NewCommand 创建命令协议初始器
func NewCommand(catalog pkgif.MetricCatalog, stats StatsSource) *Command {
	return &Command{
		base: base{name: "command", category: types.CategoryProtocol, required: prefixRequired},
		cmds: &commands{catalog: catalog, stats: stats},
	}
}

// Match 实现 Initiator
func (c *Command) Match(b []byte) types.MatchResult {
	return matchPrefix(b, commandWords...)
}

// Install 实现 Initiator
func (c *Command) Install(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
	ctx.SetStage(&commandStage{cmds: c.cmds, w: ctx.Writer()})
	return types.PhaseComplete, nil
}

// commandStage 在连接 goroutine 中同步执行命令
type commandStage struct {
	cmds  *commands
	w     io.Writer
	lines lineBuffer
	quit  bool
}

func (s *commandStage) Write(p []byte) error {
	if s.quit {
		return pkgif.ErrStageDone
	}
	if err := s.lines.feed(p, s.line); err != nil {
		return err
	}
	if s.quit {
		return pkgif.ErrStageDone
	}
	return nil
}

func (s *commandStage) Close() error {
	if s.quit {
		return nil
	}
	return s.lines.flush(s.line)
}

func (s *commandStage) line(line []byte) error {
	if s.quit {
		return nil
	}
	reply, quit := s.cmds.exec(string(line))
	if reply == "" {
		return nil
	}
	if _, err := io.WriteString(s.w, reply+"\n"); err != nil {
		return err
	}
	s.quit = quit
	return nil
}
