package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string         `gorm:"not null"                 json:"name"`
	Email         string         `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash  string         `gorm:"not null"                 json:"-"`
	Role          string         `gorm:"not null;default:user"    json:"role"`
	EmailVerified bool           `gorm:"default:false"            json:"email_verified"`
	CreatedAt     time.Time      `json:"created_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index"                    json:"-"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	JTI       string `gorm:"index"           json:"jti"`
	Role      string `json:"role"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"not null"                 json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null"     json:"slug"`
	Description string    `json:"description"`
	Category    string    `gorm:"index"                    json:"category"`
	Brand       string    `json:"brand"`
	Price       float64   `gorm:"not null"                 json:"price"`
	Stock       int       `gorm:"not null;default:0"       json:"stock"`
	Images      []string  `gorm:"serializer:json"          json:"images"`
	Active      bool      `gorm:"default:true"             json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CartItem is one line of a user's cart. The cart itself has no row of its
// own: a user with no lines and a user with an emptied cart are the same
// observable state. Price is captured at add time.
type CartItem struct {
	ID        uint    `gorm:"primaryKey"                                       json:"id"`
	UserID    uint    `gorm:"not null;uniqueIndex:idx_cart_user_product"       json:"user_id"`
	ProductID uint    `gorm:"not null;uniqueIndex:idx_cart_user_product"       json:"product_id"`
	Quantity  int     `gorm:"not null;check:quantity > 0"                      json:"quantity"`
	Price     float64 `gorm:"not null"                                         json:"price"`
}

// Fulfillment statuses, in transition order.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

type ShippingAddress struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
	Country  string `json:"country"`
}

type Order struct {
	ID                uint            `gorm:"primaryKey;autoIncrement"      json:"id"`
	UserID            uint            `gorm:"index;not null"                json:"user_id"`
	Items             []OrderItem     `gorm:"foreignKey:OrderID"            json:"items"`
	TotalAmount       float64         `gorm:"not null"                      json:"total_amount"`
	ShippingAddress   ShippingAddress `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	PaymentMethod     string          `gorm:"not null;default:online"       json:"payment_method"`
	PaymentStatus     string          `gorm:"not null;default:pending"      json:"payment_status"`
	Status            string          `gorm:"not null;default:pending"      json:"status"`
	ProviderOrderID   string          `gorm:"uniqueIndex"                   json:"provider_order_id"`
	ProviderPaymentID string          `json:"provider_payment_id"`
	CreatedAt         time.Time       `json:"created_at"`
}

// OrderItem is an immutable snapshot of a product at purchase time.
type OrderItem struct {
	ID        uint    `gorm:"primaryKey"     json:"id"`
	OrderID   uint    `gorm:"index;not null" json:"order_id"`
	ProductID uint    `gorm:"not null"       json:"product_id"`
	Name      string  `gorm:"not null"       json:"name"`
	Price     float64 `gorm:"not null"       json:"price"`
	Quantity  int     `gorm:"not null"       json:"quantity"`
	Image     string  `json:"image"`
}

const (
	OTPPurposeLogin = "login"
	OTPPurposeReset = "reset"
)

// OTP is a single-use mail code. Regeneration deletes older rows for the
// same email and purpose; verification deletes the row it matched.
type OTP struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	Email     string    `gorm:"index;not null" json:"email"`
	Code      string    `gorm:"not null"       json:"-"`
	Purpose   string    `gorm:"index;not null" json:"purpose"`
	ExpiresAt time.Time `gorm:"not null"       json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
