package types

// ============================================================================
//                              Phase - 协商阶段
// ============================================================================

// Phase 单个连接的协商阶段
//
// 阶段只能前进（同一阶段等待更多字节时的重复进入除外），
// 常量顺序即推进顺序。
type Phase int

const (
	// PhaseInit 连接刚建立，检测协议
	PhaseInit Phase = iota
	// PhaseEncodingDetect 协议已确定，检测传输编码
	PhaseEncodingDetect
	// PhaseDecompress 编码已确定，等待解码完成
	PhaseDecompress
	// PhaseContentDetect 检测负载内容类型
	PhaseContentDetect
	// PhaseContent 内容处理器已安装，负载流入中
	PhaseContent
	// PhaseComplete 终态：协商成功
	PhaseComplete
	// PhaseError 终态：协商失败
	PhaseError
)

// String 返回阶段的字符串表示
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseEncodingDetect:
		return "encoding-detect"
	case PhaseDecompress:
		return "decompress"
	case PhaseContentDetect:
		return "content-detect"
	case PhaseContent:
		return "content"
	case PhaseComplete:
		return "complete"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal 是否为终态
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// IsDetect 是否为检测阶段（需要运行初始器）
func (p Phase) IsDetect() bool {
	_, ok := p.Category()
	return ok
}

// Category 返回在该阶段被测试的初始器类别
func (p Phase) Category() (Category, bool) {
	switch p {
	case PhaseInit:
		return CategoryProtocol, true
	case PhaseEncodingDetect:
		return CategoryEncoding, true
	case PhaseContentDetect:
		return CategoryContent, true
	default:
		return 0, false
	}
}

// ============================================================================
//                              Category - 初始器类别
// ============================================================================

// Category 初始器类别
//
// 类别只决定初始器在哪个阶段被测试，不区分实现类型。
type Category int

const (
	// CategoryProtocol 协议初始器（线路帧格式）
	CategoryProtocol Category = iota
	// CategoryEncoding 编码初始器（传输层压缩）
	CategoryEncoding
	// CategoryContent 内容分类器（负载类型）
	CategoryContent

	// NumCategories 类别数量
	NumCategories = 3
)

// String 返回类别的字符串表示
func (c Category) String() string {
	switch c {
	case CategoryProtocol:
		return "protocol"
	case CategoryEncoding:
		return "encoding"
	case CategoryContent:
		return "content"
	default:
		return "unknown"
	}
}

// Valid 是否为已知类别
func (c Category) Valid() bool {
	return c >= CategoryProtocol && c < NumCategories
}

// DetectPhase 返回测试该类别的阶段
func (c Category) DetectPhase() Phase {
	switch c {
	case CategoryEncoding:
		return PhaseEncodingDetect
	case CategoryContent:
		return PhaseContentDetect
	default:
		return PhaseInit
	}
}
