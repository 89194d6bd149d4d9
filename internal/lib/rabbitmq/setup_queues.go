package rabbitmq

// Exchange — обменник всех событий портала.
const Exchange = "intrarez"

// Ключи маршрутизации событий.
const (
	RoutingKeyNotification = "notification"
	RoutingKeyDHCP         = "dhcp"
)

// Имена очередей фоновых воркеров.
const (
	QueueNotifications = "intrarez.notifications"
	QueueDHCP          = "intrarez.dhcp"
)

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetPortalQueues возвращает очереди фоновых воркеров портала:
// рассылка уведомлений резидентам и перегенерация файла хостов DHCP.
func GetPortalQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueNotifications, RoutingKey: RoutingKeyNotification},
		{QueueName: QueueDHCP, RoutingKey: RoutingKeyDHCP},
	}
}
