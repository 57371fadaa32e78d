package eventpubsub

import "github.com/quantsim/quantsim/src/eventmodels"

var topics = []eventmodels.EventType{
	eventmodels.MarketBarEventType,
	eventmodels.SignalEventType,
	eventmodels.OrderEventType,
	eventmodels.FillEventType,
}
