// Package interfaces 定义连接管线各层之间的契约
//
// 这些接口把 Noise、Mplex、multistream-select、Switch 与 PubSub
// 相互解耦：每一层只依赖上一层暴露的最小能力集合，而不是具体实现。
package interfaces

import (
	"github.com/corenet/p2pstack/pkg/lib/crypto"
	"github.com/corenet/p2pstack/pkg/types"
)

// Identity 是本地节点的身份：私钥、公钥与由此派生的 PeerID。
// 密钥对的生成本身不是本模块职责，调用方负责生成并注入。
type Identity interface {
	PrivateKey() crypto.PrivateKey
	PublicKey() crypto.PublicKey
	PeerID() types.PeerID
}

type identity struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
	id   types.PeerID
}

// NewIdentity 从一个已有的私钥构造 Identity，派生 PeerID
func NewIdentity(priv crypto.PrivateKey) (Identity, error) {
	pub := priv.GetPublic()
	id, err := crypto.PeerIDFromPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &identity{priv: priv, pub: pub, id: id}, nil
}

func (i *identity) PrivateKey() crypto.PrivateKey { return i.priv }
func (i *identity) PublicKey() crypto.PublicKey   { return i.pub }
func (i *identity) PeerID() types.PeerID          { return i.id }
