package wire

// Cluster and command identifiers for the OTA Software Update clusters.
// Spec Sections 11.19 (Provider) and 11.20 (Requestor).
const (
	ClusterIDOTAProvider  uint32 = 0x0029
	ClusterIDOTARequestor uint32 = 0x002A
)

const (
	CommandIDQueryImage            uint32 = 0x00
	CommandIDQueryImageResponse    uint32 = 0x01
	CommandIDApplyUpdateRequest    uint32 = 0x02
	CommandIDApplyUpdateResponse   uint32 = 0x03
	CommandIDNotifyUpdateApplied   uint32 = 0x04
)

const (
	CommandIDAnnounceOTAProvider uint32 = 0x00
)
