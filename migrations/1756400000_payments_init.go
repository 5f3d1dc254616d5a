package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// usersCollectionId is PocketBase's built-in auth collection.
const usersCollectionId = "_pb_users_auth_"

func init() {
	m.Register(func(app core.App) error {
		events := core.NewBaseCollection("events")
		events.Fields.Add(
			&core.TextField{Name: "title", Required: true},
			&core.TextField{Name: "slug"},
			&core.RelationField{Name: "organizer_id", CollectionId: usersCollectionId, Required: true, MaxSelect: 1},
			&core.DateField{Name: "date"},
			&core.TextField{Name: "venue"},
			&core.NumberField{Name: "price", OnlyInt: true},
			&core.TextField{Name: "currency"},
			&core.BoolField{Name: "is_free"},
			&core.NumberField{Name: "capacity", OnlyInt: true},
			&core.NumberField{Name: "available_tickets", OnlyInt: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		events.AddIndex("idx_events_slug", true, "slug", "slug != ''")
		events.AddIndex("idx_events_organizer", false, "organizer_id", "")
		if err := app.Save(events); err != nil {
			return err
		}

		plans := core.NewBaseCollection("plans")
		plans.Fields.Add(
			&core.TextField{Name: "name", Required: true},
			&core.NumberField{Name: "price", OnlyInt: true},
			&core.AutodateField{Name: "created", OnCreate: true},
		)
		if err := app.Save(plans); err != nil {
			return err
		}

		subscriptions := core.NewBaseCollection("subscriptions")
		subscriptions.Fields.Add(
			&core.RelationField{Name: "user_id", CollectionId: usersCollectionId, Required: true, MaxSelect: 1},
			&core.RelationField{Name: "plan_id", CollectionId: plans.Id, MaxSelect: 1},
			&core.SelectField{Name: "status", Values: []string{"incomplete", "active", "trialing", "canceled"}, MaxSelect: 1, Required: true},
			&core.TextField{Name: "payment_intent_id"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		subscriptions.AddIndex("idx_subscriptions_intent", false, "payment_intent_id", "")
		subscriptions.AddIndex("idx_subscriptions_user", false, "user_id", "")
		if err := app.Save(subscriptions); err != nil {
			return err
		}

		bookings := core.NewBaseCollection("bookings")
		bookings.Fields.Add(
			&core.RelationField{Name: "user_id", CollectionId: usersCollectionId, Required: true, MaxSelect: 1},
			&core.RelationField{Name: "event_id", CollectionId: events.Id, Required: true, MaxSelect: 1},
			&core.SelectField{Name: "payment_status", Values: []string{"pending", "confirmed", "rejected"}, MaxSelect: 1, Required: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		bookings.AddIndex("idx_bookings_user", false, "user_id", "")
		if err := app.Save(bookings); err != nil {
			return err
		}

		transactions := core.NewBaseCollection("transactions")
		transactions.Fields.Add(
			&core.RelationField{Name: "event_id", CollectionId: events.Id, MaxSelect: 1},
			&core.RelationField{Name: "booking_id", CollectionId: bookings.Id, MaxSelect: 1},
			&core.RelationField{Name: "user_id", CollectionId: usersCollectionId, Required: true, MaxSelect: 1},
			&core.TextField{Name: "payment_intent_id"},
			&core.NumberField{Name: "amount", OnlyInt: true},
			&core.NumberField{Name: "platform_fee", OnlyInt: true},
			&core.NumberField{Name: "organizer_revenue", OnlyInt: true},
			&core.SelectField{Name: "status", Values: []string{"pending", "completed", "refunded", "failed"}, MaxSelect: 1, Required: true},
			&core.DateField{Name: "completed_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		transactions.AddIndex("idx_transactions_intent", false, "payment_intent_id", "")
		transactions.AddIndex("idx_transactions_event_status", false, "event_id, status", "")
		if err := app.Save(transactions); err != nil {
			return err
		}

		tickets := core.NewBaseCollection("tickets")
		tickets.Fields.Add(
			&core.RelationField{Name: "booking_id", CollectionId: bookings.Id, Required: true, MaxSelect: 1},
			&core.TextField{Name: "ticket_number", Required: true},
			&core.TextField{Name: "qr_payload"},
			&core.SelectField{Name: "status", Values: []string{"active", "used", "void"}, MaxSelect: 1, Required: true},
			&core.AutodateField{Name: "created", OnCreate: true},
		)
		// the storage-level guard against double issuance
		tickets.AddIndex("idx_tickets_booking_unique", true, "booking_id", "")
		tickets.AddIndex("idx_tickets_number_unique", true, "ticket_number", "")
		if err := app.Save(tickets); err != nil {
			return err
		}

		payouts := core.NewBaseCollection("payouts")
		payouts.Fields.Add(
			&core.RelationField{Name: "organizer_id", CollectionId: usersCollectionId, Required: true, MaxSelect: 1},
			&core.NumberField{Name: "amount", OnlyInt: true},
			&core.TextField{Name: "currency"},
			&core.SelectField{Name: "status", Values: []string{"pending", "processing", "completed", "failed"}, MaxSelect: 1, Required: true},
			&core.TextField{Name: "payment_method"},
			&core.JSONField{Name: "transaction_ids"},
			&core.DateField{Name: "requested_at"},
			&core.DateField{Name: "processed_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		payouts.AddIndex("idx_payouts_organizer", false, "organizer_id", "")
		if err := app.Save(payouts); err != nil {
			return err
		}

		notifications := core.NewBaseCollection("notifications")
		notifications.Fields.Add(
			&core.RelationField{Name: "user_id", CollectionId: usersCollectionId, Required: true, MaxSelect: 1},
			&core.TextField{Name: "type"},
			&core.TextField{Name: "title"},
			&core.TextField{Name: "message"},
			&core.TextField{Name: "link"},
			&core.JSONField{Name: "meta"},
			&core.BoolField{Name: "read"},
			&core.AutodateField{Name: "created", OnCreate: true},
		)
		notifications.AddIndex("idx_notifications_user", false, "user_id", "")
		return app.Save(notifications)
	}, func(app core.App) error {
		names := []string{"notifications", "payouts", "tickets", "transactions", "bookings", "subscriptions", "plans", "events"}
		for _, name := range names {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				continue
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
