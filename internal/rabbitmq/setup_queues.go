package rabbitmq

// ReportsExchange точка обмена для фоновых задач по отчётам.
const ReportsExchange = "reports"

// Маршруты очередей.
const (
	EmailQueue      = "report_emails"
	EmailRoutingKey = "email"
)

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

func GetReportQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: EmailQueue, RoutingKey: EmailRoutingKey},
	}
}
