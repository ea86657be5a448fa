// Package pubsub 包含 FloodSub/GossipSub RPC 消息的 protobuf 定义
//
// 字段编号与主流 pubsub 线格式对齐，但编解码不依赖 protoc 生成代码：
// 每个类型手写 Marshal/Unmarshal，风格与 pkg/lib/proto/noise 一致，
// 通过 gogo/protobuf 的 Marshaler/Unmarshaler 接口与 proto.Marshal/
// proto.Unmarshal 对接（见 gogo.go）。
package pubsub

// RPC 是节点间交换的顶层消息：订阅变更、发布的消息、可选的控制消息
type RPC struct {
	Subscriptions []*SubOpts
	Publish       []*Message
	Control       *ControlMessage
}

// SubOpts 是一次订阅状态变更
type SubOpts struct {
	Subscribe bool
	Topicid   string
}

// Message 是一条发布出去的应用消息
type Message struct {
	From      []byte
	Data      []byte
	Seqno     []byte
	TopicIDs  []string
	Signature []byte
	Key       []byte
}

// ControlMessage 携带 GossipSub 的 mesh 维护指令
type ControlMessage struct {
	Ihave []*ControlIHave
	Iwant []*ControlIWant
	Graft []*ControlGraft
	Prune []*ControlPrune
}

// ControlIHave 通告发送方最近见过的消息 id
type ControlIHave struct {
	TopicID    string
	MessageIDs [][]byte
}

// ControlIWant 请求发送方重发指定的消息 id
type ControlIWant struct {
	MessageIDs [][]byte
}

// ControlGraft 请求将发送方加入某主题的 mesh
type ControlGraft struct {
	TopicID string
}

// ControlPrune 请求将发送方移出某主题的 mesh，可附带重新 graft 的回退时长
type ControlPrune struct {
	TopicID string
	Backoff uint64
}

// ============================================================================
//                              RPC
// ============================================================================

// Marshal 编码为 protobuf wire 格式
func (m *RPC) Marshal() ([]byte, error) {
	var buf []byte
	for _, s := range m.Subscriptions {
		sb, err := s.Marshal()
		if err != nil {
			return nil, err
		}
		buf = appendLenDelim(buf, 1, sb)
	}
	for _, p := range m.Publish {
		pb, err := p.Marshal()
		if err != nil {
			return nil, err
		}
		buf = appendLenDelim(buf, 2, pb)
	}
	if m.Control != nil {
		cb, err := m.Control.Marshal()
		if err != nil {
			return nil, err
		}
		buf = appendLenDelim(buf, 3, cb)
	}
	return buf, nil
}

// Unmarshal 解码 protobuf wire 字节
func (m *RPC) Unmarshal(data []byte) error {
	*m = RPC{}
	for len(data) > 0 {
		field, wireType, n, err := readTag(data)
		if err != nil {
			return err
		}
		data = data[n:]
		if wireType != 2 {
			return ErrInvalidWire
		}
		val, n, err := readLenDelim(data)
		if err != nil {
			return err
		}
		data = data[n:]
		switch field {
		case 1:
			s := &SubOpts{}
			if err := s.Unmarshal(val); err != nil {
				return err
			}
			m.Subscriptions = append(m.Subscriptions, s)
		case 2:
			p := &Message{}
			if err := p.Unmarshal(val); err != nil {
				return err
			}
			m.Publish = append(m.Publish, p)
		case 3:
			c := &ControlMessage{}
			if err := c.Unmarshal(val); err != nil {
				return err
			}
			m.Control = c
		}
	}
	return nil
}

// ============================================================================
//                              SubOpts
// ============================================================================

func (m *SubOpts) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendBool(buf, 1, m.Subscribe)
	buf = appendString(buf, 2, m.Topicid)
	return buf, nil
}

func (m *SubOpts) Unmarshal(data []byte) error {
	*m = SubOpts{}
	for len(data) > 0 {
		field, wireType, n, err := readTag(data)
		if err != nil {
			return err
		}
		data = data[n:]
		switch {
		case field == 1 && wireType == 0:
			v, n := consumeVarint(data)
			if n < 0 {
				return ErrInvalidWire
			}
			data = data[n:]
			m.Subscribe = v != 0
		case field == 2 && wireType == 2:
			v, n, err := readLenDelim(data)
			if err != nil {
				return err
			}
			data = data[n:]
			m.Topicid = string(v)
		default:
			skipped, err := skipField(data, wireType)
			if err != nil {
				return err
			}
			data = data[skipped:]
		}
	}
	return nil
}

// ============================================================================
//                              Message
// ============================================================================

func (m *Message) Marshal() ([]byte, error) {
	var buf []byte
	if len(m.From) > 0 {
		buf = appendLenDelim(buf, 1, m.From)
	}
	if len(m.Data) > 0 {
		buf = appendLenDelim(buf, 2, m.Data)
	}
	if len(m.Seqno) > 0 {
		buf = appendLenDelim(buf, 3, m.Seqno)
	}
	for _, t := range m.TopicIDs {
		buf = appendString(buf, 4, t)
	}
	if len(m.Signature) > 0 {
		buf = appendLenDelim(buf, 5, m.Signature)
	}
	if len(m.Key) > 0 {
		buf = appendLenDelim(buf, 6, m.Key)
	}
	return buf, nil
}

func (m *Message) Unmarshal(data []byte) error {
	*m = Message{}
	for len(data) > 0 {
		field, wireType, n, err := readTag(data)
		if err != nil {
			return err
		}
		data = data[n:]
		if wireType != 2 {
			skipped, err := skipField(data, wireType)
			if err != nil {
				return err
			}
			data = data[skipped:]
			continue
		}
		val, n, err := readLenDelim(data)
		if err != nil {
			return err
		}
		data = data[n:]
		switch field {
		case 1:
			m.From = append([]byte(nil), val...)
		case 2:
			m.Data = append([]byte(nil), val...)
		case 3:
			m.Seqno = append([]byte(nil), val...)
		case 4:
			m.TopicIDs = append(m.TopicIDs, string(val))
		case 5:
			m.Signature = append([]byte(nil), val...)
		case 6:
			m.Key = append([]byte(nil), val...)
		}
	}
	return nil
}

// ============================================================================
//                              ControlMessage
// ============================================================================

func (m *ControlMessage) Marshal() ([]byte, error) {
	var buf []byte
	for _, v := range m.Ihave {
		b, err := v.Marshal()
		if err != nil {
			return nil, err
		}
		buf = appendLenDelim(buf, 1, b)
	}
	for _, v := range m.Iwant {
		b, err := v.Marshal()
		if err != nil {
			return nil, err
		}
		buf = appendLenDelim(buf, 2, b)
	}
	for _, v := range m.Graft {
		b, err := v.Marshal()
		if err != nil {
			return nil, err
		}
		buf = appendLenDelim(buf, 3, b)
	}
	for _, v := range m.Prune {
		b, err := v.Marshal()
		if err != nil {
			return nil, err
		}
		buf = appendLenDelim(buf, 4, b)
	}
	return buf, nil
}

func (m *ControlMessage) Unmarshal(data []byte) error {
	*m = ControlMessage{}
	for len(data) > 0 {
		field, wireType, n, err := readTag(data)
		if err != nil {
			return err
		}
		data = data[n:]
		if wireType != 2 {
			return ErrInvalidWire
		}
		val, n, err := readLenDelim(data)
		if err != nil {
			return err
		}
		data = data[n:]
		switch field {
		case 1:
			v := &ControlIHave{}
			if err := v.Unmarshal(val); err != nil {
				return err
			}
			m.Ihave = append(m.Ihave, v)
		case 2:
			v := &ControlIWant{}
			if err := v.Unmarshal(val); err != nil {
				return err
			}
			m.Iwant = append(m.Iwant, v)
		case 3:
			v := &ControlGraft{}
			if err := v.Unmarshal(val); err != nil {
				return err
			}
			m.Graft = append(m.Graft, v)
		case 4:
			v := &ControlPrune{}
			if err := v.Unmarshal(val); err != nil {
				return err
			}
			m.Prune = append(m.Prune, v)
		}
	}
	return nil
}

// ============================================================================
//                              ControlIHave / ControlIWant
// ============================================================================

func (m *ControlIHave) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendString(buf, 1, m.TopicID)
	for _, id := range m.MessageIDs {
		buf = appendLenDelim(buf, 2, id)
	}
	return buf, nil
}

func (m *ControlIHave) Unmarshal(data []byte) error {
	*m = ControlIHave{}
	for len(data) > 0 {
		field, wireType, n, err := readTag(data)
		if err != nil {
			return err
		}
		data = data[n:]
		if wireType != 2 {
			return ErrInvalidWire
		}
		val, n, err := readLenDelim(data)
		if err != nil {
			return err
		}
		data = data[n:]
		switch field {
		case 1:
			m.TopicID = string(val)
		case 2:
			m.MessageIDs = append(m.MessageIDs, append([]byte(nil), val...))
		}
	}
	return nil
}

func (m *ControlIWant) Marshal() ([]byte, error) {
	var buf []byte
	for _, id := range m.MessageIDs {
		buf = appendLenDelim(buf, 1, id)
	}
	return buf, nil
}

func (m *ControlIWant) Unmarshal(data []byte) error {
	*m = ControlIWant{}
	for len(data) > 0 {
		field, wireType, n, err := readTag(data)
		if err != nil {
			return err
		}
		data = data[n:]
		if wireType != 2 {
			return ErrInvalidWire
		}
		val, n, err := readLenDelim(data)
		if err != nil {
			return err
		}
		data = data[n:]
		if field == 1 {
			m.MessageIDs = append(m.MessageIDs, append([]byte(nil), val...))
		}
	}
	return nil
}

// ============================================================================
//                              ControlGraft / ControlPrune
// ============================================================================

func (m *ControlGraft) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendString(buf, 1, m.TopicID)
	return buf, nil
}

func (m *ControlGraft) Unmarshal(data []byte) error {
	*m = ControlGraft{}
	for len(data) > 0 {
		field, wireType, n, err := readTag(data)
		if err != nil {
			return err
		}
		data = data[n:]
		if wireType != 2 {
			return ErrInvalidWire
		}
		val, n, err := readLenDelim(data)
		if err != nil {
			return err
		}
		data = data[n:]
		if field == 1 {
			m.TopicID = string(val)
		}
	}
	return nil
}

func (m *ControlPrune) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendString(buf, 1, m.TopicID)
	if m.Backoff > 0 {
		buf = appendUint64(buf, 3, m.Backoff)
	}
	return buf, nil
}

func (m *ControlPrune) Unmarshal(data []byte) error {
	*m = ControlPrune{}
	for len(data) > 0 {
		field, wireType, n, err := readTag(data)
		if err != nil {
			return err
		}
		data = data[n:]
		switch {
		case field == 1 && wireType == 2:
			val, n, err := readLenDelim(data)
			if err != nil {
				return err
			}
			data = data[n:]
			m.TopicID = string(val)
		case field == 3 && wireType == 0:
			v, n := consumeVarint(data)
			if n < 0 {
				return ErrInvalidWire
			}
			data = data[n:]
			m.Backoff = v
		default:
			skipped, err := skipField(data, wireType)
			if err != nil {
				return err
			}
			data = data[skipped:]
		}
	}
	return nil
}

// ============================================================================
//                              解码辅助
// ============================================================================

func readTag(data []byte) (field int, wireType byte, n int, err error) {
	v, n := consumeVarint(data)
	if n < 0 {
		return 0, 0, 0, ErrInvalidWire
	}
	return int(v >> 3), byte(v & 0x07), n, nil
}

// skipField 跳过一个未知字段，返回消费的字节数
func skipField(data []byte, wireType byte) (int, error) {
	switch wireType {
	case 0: // varint
		_, n := consumeVarint(data)
		if n < 0 {
			return 0, ErrInvalidWire
		}
		return n, nil
	case 2: // length-delimited
		_, n, err := readLenDelim(data)
		return n, err
	default:
		return 0, ErrInvalidWire
	}
}
