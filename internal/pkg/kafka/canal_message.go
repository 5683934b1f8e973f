package kafka

// CanalMessage Canal 同步 MySQL binlog 后写入 Kafka 的 JSON 消息
// Data 为变更后的行，Old 为 UPDATE 时变更前的行，所有列值均为字符串
type CanalMessage struct {
	ID       int64  `json:"id"`
	Database string `json:"database"`
	Table    string `json:"table"`
	Type     string `json:"type"`
	IsDDL    bool   `json:"isDdl"`
	SQL      string `json:"sql"`

	PKNames []string `json:"pkNames"`

	Data []map[string]interface{} `json:"data"`
	Old  []map[string]interface{} `json:"old"`

	// ES 为 binlog 执行时间，TS 为 Canal 投递时间，单位毫秒
	ES int64 `json:"es"`
	TS int64 `json:"ts"`

	SqlType   map[string]int    `json:"sqlType"`
	MysqlType map[string]string `json:"mysqlType"`
}

// ColumnChanged 判断 UPDATE 事件中某列是否发生变化
func (m *CanalMessage) ColumnChanged(column string) bool {
	if m.Type != UPDATE || len(m.Old) == 0 {
		return false
	}
	_, ok := m.Old[0][column]
	return ok
}
