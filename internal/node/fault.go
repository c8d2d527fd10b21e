package node

import (
	"errors"
	"fmt"
)

// ErrFaultInjected marks the deliberate crash configured by Config.FailAt.
// It exists only so harnesses can prove they detect and report a crashing
// node; it never signals a protocol bug.
var ErrFaultInjected = errors.New("node: injected fault")

func (n *Node) checkFault() error {
	if n.cfg.FailAt == 0 {
		return nil
	}
	if seq := n.layer.Seq(); seq >= n.cfg.FailAt {
		return fmt.Errorf("%w: %s reached sequence %d", ErrFaultInjected, n.cfg.ID, seq)
	}
	return nil
}
