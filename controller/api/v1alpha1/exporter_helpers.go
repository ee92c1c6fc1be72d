package v1alpha1

import "strings"

func (e *Exporter) InternalSubject() string {
	namespace, uid := getNamespaceAndUID(e.Namespace, e.UID, e.Annotations)
	return strings.Join([]string{"exporter", namespace, e.Name, uid}, ":")
}

func (e *Exporter) Usernames(prefix string) []string {
	usernames := []string{prefix + e.InternalSubject()}

	if e.Spec.Username != nil {
		usernames = append(usernames, *e.Spec.Username)
	}

	return usernames
}
