package model

// PhoneNotFound is the sentinel recorded when an appointment's detail
// view exposes no contact-number control. It survives into the
// consolidated CSV so a human can spot the gap.
const PhoneNotFound = "Not Found"

// PhoneDirectory maps an appointment reference to the raw phone string
// recovered from its detail view. Populated incrementally, only for rows
// whose original export lacked a phone value.
type PhoneDirectory map[string]string
