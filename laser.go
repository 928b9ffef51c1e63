package tbremote

import (
	"context"
	"strings"
)

// LaserOn 打开光口激光。
func (c *Controller) LaserOn(ctx context.Context) error {
	return c.Exec(ctx, CmdLaser+" ON")
}

// LaserOff 关闭光口激光。
func (c *Controller) LaserOff(ctx context.Context) error {
	return c.Exec(ctx, CmdLaser+" OFF")
}

// LaserStatus 查询激光是否打开。
func (c *Controller) LaserStatus(ctx context.Context) (bool, error) {
	reply, err := c.Query(ctx, CmdLaser+"?")
	if err != nil {
		return false, err
	}
	switch strings.ToUpper(strings.TrimSpace(reply)) {
	case "ON", "1":
		return true, nil
	case "OFF", "0":
		return false, nil
	}
	return false, NewProtocolError(CmdLaser+"?", "ON or OFF", reply)
}
