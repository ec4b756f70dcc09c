package models

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	CanceledByUser  = "user"
	CanceledByAdmin = "admin"
)

const (
	// DefaultCancelCutoffHours минимальное время до слота для самостоятельной отмены
	DefaultCancelCutoffHours = 4

	// DefaultMonthlyCancelLimit количество бесплатных отмен в месяц
	DefaultMonthlyCancelLimit = 1

	// DefaultRedisTTL время жизни кэшированного профиля в Redis
	DefaultRedisTTL = 24 * 60 * 60 // 24 часа в секундах

	// RateLimitActions количество действий в окне
	RateLimitActions = 20

	// RateLimitWindow окно ограничения частоты действий
	RateLimitWindow = 60 // 1 минута в секундах

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000
)
