package email

const (
	subjectCampStatusFmt         = "Camp %d is now %s"
	subjectProvisioningReportFmt = "Attendance provisioning for camp %d needs attention"
)
