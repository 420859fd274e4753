package gamepad

const (
	// Buttons is the number of button slots: 12 gear slots plus sequential
	// up and down.
	Buttons = 14

	SlotSequentialUp   = 12
	SlotSequentialDown = 13

	ReportID   = 0x01
	ReportSize = 5
	ZMax       = 1023

	VendorID  = 0x1209
	ProductID = 0x0012

	Manufacturer = "hshifter"
	Product      = "DIY Shifter and E-Brake"

	buttonMask = 1<<Buttons - 1
)

// HID class requests answered on EP0.
const (
	hidReqGetReport = 0x01
	hidReqGetIdle   = 0x02
	hidReqSetIdle   = 0x0A

	reqTypeClassInterfaceIn  = 0xA1
	reqTypeClassInterfaceOut = 0x21
)
