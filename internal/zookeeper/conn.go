package zookeeper

import (
	"time"

	"github.com/go-zookeeper/zk"
	zlog "github.com/rs/zerolog/log"
)

// Conn 包装 zk.Conn，统一日志输出到 zerolog
type Conn struct {
	*zk.Conn
}

// Connect 建立 ZooKeeper 会话
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	zkLogger := zlog.With().Str("component", "zookeeper").Logger()
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogger(&zkLogger))
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: conn}, nil
}
